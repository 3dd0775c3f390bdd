package models

// ComplianceItem is an entry of the prohibited items list
type ComplianceItem struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// Deal is a trending shopping deal
type Deal struct {
	ID            ID     `json:"id"`
	Title         string `json:"title"`
	Store         string `json:"store,omitempty"`
	URL           string `json:"url,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	Price         Amount `json:"price"`
	OriginalPrice Amount `json:"original_price,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// DiscountPercent is the saving against the original price, 0 when unknown
func (d Deal) DiscountPercent() int {
	if d.OriginalPrice <= 0 || d.Price >= d.OriginalPrice {
		return 0
	}
	return int((1 - float64(d.Price)/float64(d.OriginalPrice)) * 100)
}

// CourierPartner is a carrier the service ships with
type CourierPartner struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Logo        string `json:"logo,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}
