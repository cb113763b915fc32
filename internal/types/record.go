package types

import "strconv"

// Placeholder values substituted when the page does not provide a field.
const (
	UnknownName       = "Неизвестно"
	PriceNotSpecified = "Цена не указана"
	LinkNotFound      = "Ссылка не найдена"
)

// RawRecord is what the extractor reads off one card before any cleaning.
// An empty Price or URL means the card did not carry that field.
type RawRecord struct {
	Name  string
	Price string
	URL   string
}

// HasPrice reports whether the card carried a price element.
func (r RawRecord) HasPrice() bool { return r.Price != "" }

// HasURL reports whether the card carried a link.
func (r RawRecord) HasURL() bool { return r.URL != "" }

// Record is a finished product row. Records are only built by the
// normalizer, which guarantees Price is at or above the admission minimum.
type Record struct {
	Name           string `json:"name"            bson:"name"`
	Price          int64  `json:"price"           bson:"price"`
	FormattedPrice string `json:"formatted_price" bson:"formatted_price"`
	URL            string `json:"url"             bson:"url"`
	Category       string `json:"category"        bson:"category"`
}

// CSVHeader is the fixed header row of the output table.
var CSVHeader = []string{
	"Название товара",
	"Цена (руб)",
	"Цена отформатированная",
	"Ссылка на товар",
	"Категория",
}

// Row returns the record as a table row in CSVHeader order.
func (r Record) Row() []string {
	return []string{
		r.Name,
		strconv.FormatInt(r.Price, 10),
		r.FormattedPrice,
		r.URL,
		r.Category,
	}
}
