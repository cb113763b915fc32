package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/fetcher"
	"github.com/IshaanNene/divanscraper/internal/observability"
	"github.com/IshaanNene/divanscraper/internal/storage"
	"github.com/IshaanNene/divanscraper/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const listingHTML = `<html><body>
<div data-testid="product-card">
  <a href="/product/torsher-ralf-beige">Торшер Ральф</a>
  <span data-testid="price">13 990 руб.</span>
</div>
<div data-testid="product-card">
  <a href="/product/bra-smasten-white">Бра Смастен</a>
  <span data-testid="price">990 руб.</span>
</div>
<div data-testid="product-card">
  <p>Подвесной светильник Ферум</p>
  <span data-testid="price">4 990 руб.</span>
  <button>Купить</button>
</div>
</body></html>`

const wantCSV = "Название товара,Цена (руб),Цена отформатированная,Ссылка на товар,Категория\r\n" +
	"Torsher Ralf Beige,13990,13 990 руб.,https://www.divan.ru/product/torsher-ralf-beige,Источники освещения\r\n" +
	"Подвесной светильник Ферум,4990,4 990 руб.,Ссылка не найдена,Источники освещения\r\n"

func newListingServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConfig(t *testing.T, seeds ...string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Site.StartURLs = seeds
	cfg.Site.AllowedDomains = []string{"127.0.0.1"}
	cfg.Storage.OutputPath = filepath.Join(t.TempDir(), "data", "products.csv")
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, st storage.Storage) *Engine {
	t.Helper()
	e, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f, err := fetcher.NewHTTPFetcher(cfg.Fetcher, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	e.SetFetcher(f)
	e.SetStorage(st)
	return e
}

// recordingStorage keeps a copy of every flush.
type recordingStorage struct {
	flushes [][]types.Record
	err     error
	closed  int
}

func (s *recordingStorage) Flush(_ context.Context, records []types.Record) error {
	s.flushes = append(s.flushes, append([]types.Record(nil), records...))
	return s.err
}

func (s *recordingStorage) Close() error {
	s.closed++
	return nil
}

func (s *recordingStorage) Name() string { return "recording" }

func TestRunWritesCSV(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": listingHTML})
	cfg := newTestConfig(t, srv.URL+"/category/svet")

	st, err := storage.NewCSVStorage(cfg.Storage.OutputPath, true, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, cfg, st)

	var emitted []string
	e.OnRecord(func(rec types.Record) { emitted = append(emitted, rec.Name) })

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(cfg.Storage.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != wantCSV {
		t.Errorf("output mismatch:\ngot  %q\nwant %q", got, wantCSV)
	}

	if strings.Join(emitted, "|") != "Torsher Ralf Beige|Подвесной светильник Ферум" {
		t.Errorf("emitted = %v", emitted)
	}
	if e.GetState() != StateStopped {
		t.Errorf("state = %s, want stopped", e.GetState())
	}

	snap := e.Stats().Snapshot()
	if snap["cards_found"].(int64) != 3 || snap["records_kept"].(int64) != 2 || snap["records_dropped"].(int64) != 1 {
		t.Errorf("unexpected stats: %v", snap)
	}
}

func TestRunFlushesPerPageAndAtEnd(t *testing.T) {
	second := strings.Replace(listingHTML, "torsher-ralf-beige", "torsher-ralf-grey", 1)
	srv := newListingServer(t, map[string]string{
		"/category/svet":   listingHTML,
		"/category/svet/2": second,
	})
	cfg := newTestConfig(t, srv.URL+"/category/svet", srv.URL+"/category/svet/2")

	st := &recordingStorage{}
	e := newTestEngine(t, cfg, st)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.flushes) != 3 {
		t.Fatalf("expected 2 page flushes plus a final one, got %d", len(st.flushes))
	}
	if len(st.flushes[0]) != 2 || len(st.flushes[1]) != 4 || len(st.flushes[2]) != 4 {
		t.Errorf("flush sizes = %d, %d, %d", len(st.flushes[0]), len(st.flushes[1]), len(st.flushes[2]))
	}
	if st.flushes[1][2].URL != "https://www.divan.ru/product/torsher-ralf-grey" {
		t.Errorf("second page records should follow the first page's, got %+v", st.flushes[1][2])
	}
	if st.closed != 1 {
		t.Errorf("storage closed %d times, want 1", st.closed)
	}
}

func TestRunSwallowsStorageFailure(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": listingHTML})
	cfg := newTestConfig(t, srv.URL+"/category/svet")

	st := &recordingStorage{err: &types.StorageError{Backend: "recording", Err: errors.New("disk full")}}
	e := newTestEngine(t, cfg, st)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run should not fail on storage errors: %v", err)
	}
	if len(st.flushes) != 2 {
		t.Errorf("final flush should still be attempted after a failed one, got %d flushes", len(st.flushes))
	}
	if got := e.Stats().FlushesFailed.Load(); got != 2 {
		t.Errorf("flushes_failed = %d, want 2", got)
	}
}

func TestRunSkipsBadSeeds(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": listingHTML})
	cfg := newTestConfig(t,
		"divan.ru/category/svet",
		"https://example.com/category/svet",
		srv.URL+"/missing",
		srv.URL+"/category/svet",
	)

	st := &recordingStorage{}
	e := newTestEngine(t, cfg, st)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats := e.Stats()
	if stats.SeedsSkipped.Load() != 2 {
		t.Errorf("seeds_skipped = %d, want 2", stats.SeedsSkipped.Load())
	}
	if stats.PagesFailed.Load() != 1 {
		t.Errorf("pages_failed = %d, want 1", stats.PagesFailed.Load())
	}
	if stats.PagesFetched.Load() != 1 {
		t.Errorf("pages_fetched = %d, want 1", stats.PagesFetched.Load())
	}
	if len(e.Results()) != 2 {
		t.Errorf("results = %d, want 2", len(e.Results()))
	}
}

func TestRunRefetchesRepeatedSeed(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": listingHTML})
	cfg := newTestConfig(t, srv.URL+"/category/svet", srv.URL+"/category/svet")

	st := &recordingStorage{}
	e := newTestEngine(t, cfg, st)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := e.Stats().PagesFetched.Load(); got != 2 {
		t.Errorf("pages_fetched = %d, want 2", got)
	}
	results := e.Results()
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	if results[0] != results[2] || results[1] != results[3] {
		t.Errorf("second fetch should repeat the first page's records: %+v", results)
	}
	if len(st.flushes) != 3 || len(st.flushes[2]) != 4 {
		t.Errorf("unexpected flushes: %d", len(st.flushes))
	}
}

const unpricedListingHTML = `<html><body>
<div data-testid="product-card">
  <a href="/product/torsher-ralf-beige">Торшер Ральф</a>
  <span data-testid="price">13 990 руб.</span>
</div>
<div data-testid="product-card">
  <a href="/product/podvesnoj-svetilnik-ferum-orange">Подвесной светильник Ферум</a>
  <span data-testid="price">4990</span>
</div>
<div data-testid="product-card">
  <a href="/product/nastolnaya-lampa-kvadro">Настольная лампа Квадро</a>
  <span data-testid="price">не указана</span>
</div>
</body></html>`

func TestRunDropsUnpricedCard(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": unpricedListingHTML})
	cfg := newTestConfig(t, srv.URL+"/category/svet")

	st, err := storage.NewCSVStorage(cfg.Storage.OutputPath, true, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, cfg, st)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(cfg.Storage.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "Название товара,Цена (руб),Цена отформатированная,Ссылка на товар,Категория\r\n" +
		"Torsher Ralf Beige,13990,13 990 руб.,https://www.divan.ru/product/torsher-ralf-beige,Источники освещения\r\n" +
		"Podvesnoj Svetilnik Ferum Orange,4990,4 990 руб.,https://www.divan.ru/product/podvesnoj-svetilnik-ferum-orange,Источники освещения\r\n"
	if string(got) != want {
		t.Errorf("output mismatch:\ngot  %q\nwant %q", got, want)
	}

	snap := e.Stats().Snapshot()
	if snap["cards_found"].(int64) != 3 || snap["records_kept"].(int64) != 2 || snap["records_dropped"].(int64) != 1 {
		t.Errorf("unexpected stats: %v", snap)
	}
}

func TestRunEmptyPageStillFinalizes(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": "<html><body><p>Пусто</p></body></html>"})
	cfg := newTestConfig(t, srv.URL+"/category/svet")

	st := &recordingStorage{}
	e := newTestEngine(t, cfg, st)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.flushes) != 0 {
		t.Errorf("empty result set should never reach storage, got %d flushes", len(st.flushes))
	}
	if st.closed != 1 {
		t.Errorf("storage closed %d times, want 1", st.closed)
	}
}

func TestRunCancelledStillFinalizes(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": listingHTML})
	cfg := newTestConfig(t, srv.URL+"/category/svet", srv.URL+"/category/svet?page=2")

	st := &recordingStorage{}
	e := newTestEngine(t, cfg, st)

	ctx, cancel := context.WithCancel(context.Background())
	e.OnRecord(func(types.Record) { cancel() })

	err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st.closed != 1 {
		t.Errorf("storage closed %d times, want 1", st.closed)
	}
	last := st.flushes[len(st.flushes)-1]
	if len(last) != 2 {
		t.Errorf("final flush should carry the first page's records, got %d", len(last))
	}
	if e.Stats().PagesFetched.Load() != 1 {
		t.Errorf("second seed should not be fetched after cancellation")
	}
}

func TestFinalizeOnce(t *testing.T) {
	cfg := newTestConfig(t)
	st := &recordingStorage{}
	e := newTestEngine(t, cfg, st)

	e.Finalize(context.Background())
	e.Finalize(context.Background())
	if st.closed != 1 {
		t.Errorf("storage closed %d times, want 1", st.closed)
	}
	if err := e.Run(context.Background()); !errors.Is(err, types.ErrSessionFinalized) {
		t.Errorf("Run after Finalize = %v, want ErrSessionFinalized", err)
	}
}

func TestRunRequiresComponents(t *testing.T) {
	e, err := New(newTestConfig(t), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("expected error without fetcher and storage")
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	srv := newListingServer(t, map[string]string{"/category/svet": listingHTML})
	cfg := newTestConfig(t, srv.URL+"/category/svet")

	e := newTestEngine(t, cfg, &recordingStorage{})
	m := observability.NewMetrics(testLogger)
	e.SetMetrics(m)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(m.CardsFound); got != 3 {
		t.Errorf("cards metric = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.RecordsKept); got != 2 {
		t.Errorf("kept metric = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FlushesTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok flushes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok pages = %v, want 1", got)
	}
}
