package model

type Template struct {
	ID             int64
	Title          string
	Description    string
	Image          string
	RequiredImages int
	UsageCount     int
	PriceStars     int64
	PriceUzs       int64
	Size           string
}

type TemplatePage struct {
	Templates  []Template
	Total      int
	Page       int
	TotalPages int
}
