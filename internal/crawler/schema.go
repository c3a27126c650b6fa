package crawler

// FieldSource says where a schema field takes its value from.
type FieldSource int

// Field sources.
const (
	SourceInfo FieldSource = iota
	SourceLink
	SourcePrice
	SourceProvince
	SourceDistrict
	SourceNeighborhood
)

// Field is one output column. Label is only used for SourceInfo fields and names
// the entry of the listing's "about" block the value is read from.
type Field struct {
	Name   string
	Source FieldSource
	Label  string
}

// Schema is the ordered, fixed column set of one crawl mode.
type Schema struct {
	fields []Field
}

// NewSchema builds a Schema from fields in output order.
func NewSchema(fields ...Field) Schema {
	return Schema{fields: append([]Field(nil), fields...)}
}

// Fields returns a copy of the schema fields.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Columns returns the field names in output order.
func (s Schema) Columns() []string {
	cols := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = f.Name
	}
	return cols
}

// Build assembles a Record holding every schema field. Values missing from the
// document become empty strings so all records of a mode share one key set.
func (s Schema) Build(link string, fields ListingFields) Record {
	rec := make(Record, len(s.fields))
	for _, f := range s.fields {
		switch f.Source {
		case SourceLink:
			rec[f.Name] = link
		case SourcePrice:
			rec[f.Name] = fields.Price
		case SourceProvince:
			rec[f.Name] = fields.Location[0]
		case SourceDistrict:
			rec[f.Name] = fields.Location[1]
		case SourceNeighborhood:
			rec[f.Name] = fields.Location[2]
		default:
			rec[f.Name] = fields.Info[f.Label]
		}
	}
	return rec
}

func info(name, label string) Field {
	return Field{Name: name, Source: SourceInfo, Label: label}
}

func locationFields() []Field {
	return []Field{
		{Name: "price", Source: SourcePrice},
		{Name: "province", Source: SourceProvince},
		{Name: "district", Source: SourceDistrict},
		{Name: "neighborhood", Source: SourceNeighborhood},
	}
}

func announcementFields() []Field {
	return []Field{
		info("announce_number", "İlan Numarası"),
		info("announce_publication_date", "İlan Oluşturma Tarihi"),
		info("announce_update_date", "İlan Güncelleme Tarihi"),
		info("type_1", "Türü"),
		info("type_2", "Tipi"),
		info("net_m2", "Net Metrekare"),
		info("brut_m2", "Brüt Metrekare"),
		info("number_rooms", "Oda Sayısı"),
		info("age", "Binanın Yaşı"),
		info("apartment_floor", "Bulunduğu Kat"),
		info("floors_of_building", "Binanın Kat Sayısı"),
		info("heating_type", "Isıtma Tipi"),
		info("usage_status", "Kullanım Durumu"),
	}
}

// RentSchema is the column set of the rental crawl. It has no link column.
func RentSchema() Schema {
	fields := locationFields()
	fields = append(fields, announcementFields()...)
	fields = append(fields,
		info("dues", "Aidat"),
		info("title_deed_status", "Tapu Durumu"),
		info("inside_side", "Site İçerisinde"),
		info("deposit", "Depozito"),
		info("number_bathrooms", "Banyo Sayısı"),
		info("balcony_status", "Balkon Durumu"),
		info("price_status", "Fiyat Durumu"),
	)
	return NewSchema(fields...)
}

// SaleSchema is the column set of the sale crawl.
func SaleSchema() Schema {
	fields := []Field{{Name: "link", Source: SourceLink}}
	fields = append(fields, locationFields()...)
	fields = append(fields, announcementFields()...)
	fields = append(fields,
		info("credit_elegibility", "Krediye Uygunluk"),
		info("investment_eligibility", "Yatırıma Uygunluk"),
		info("building_status", "Yapı Durumu"),
		info("building_type", "Yapı Tipi"),
		info("title_deed_status", "Tapu Durumu"),
		info("inside_side", "Site İçerisinde"),
		info("rental_income", "Kira Getirisi"),
		info("swap", "Takas"),
		info("number_bathrooms", "Banyo Sayısı"),
		info("balcony_status", "Balkon Durumu"),
		info("number_balconies", "Balkon Sayısı"),
		info("balcony_type", "Balkon Tipi"),
		info("balcony_m2", "Balkon Metrekare"),
		info("WC_number", "WC Sayısı"),
		info("price_status", "Fiyat Durumu"),
	)
	return NewSchema(fields...)
}
