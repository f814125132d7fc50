package domain

// WatchTarget is one scrape entry of a batch run: a subscribed product
// together with the shop context its fetch and parse need.
type WatchTarget struct {
	ProductID   int64
	URL         string
	ParseURL    string
	ShopID      int64
	ShopName    string
	ParseParams *ParseParams
}
