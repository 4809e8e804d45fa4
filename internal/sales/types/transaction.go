package types

import "strconv"

// Column names used by the partitioned sales dataset.
const (
	ColumnArticle     = "custArtId"
	ColumnSize        = "custSizeId"
	ColumnStore       = "custStoreId"
	ColumnBookingDate = "bookingDate"
	ColumnQuantity    = "quantity"
	ColumnYear        = "year"
	ColumnCustomer    = "customerId"
)

// Transaction is a single sales booking as stored on disk.
// Quantity may be negative (returns); every sales view filters to Quantity >= 0.
type Transaction struct {
	ArticleID   int64
	SizeID      int64
	StoreID     int64
	BookingDate string // YYYYMMDD
	Quantity    int64
	Year        int64
	CustomerID  int64
}

// CalendarKey is the (year, week) pair derived from a booking date.
type CalendarKey struct {
	Year int
	Week int
}

// String returns the key as YYYY-Www.
func (k CalendarKey) String() string {
	w := strconv.Itoa(k.Week)
	if k.Week < 10 {
		w = "0" + w
	}
	return strconv.Itoa(k.Year) + "-W" + w
}

// ScannedRow is a transaction that passed all scan predicates, narrowed to the
// columns the aggregator needs. The booking date is replaced by its week.
type ScannedRow struct {
	ArticleID int64
	SizeID    int64
	StoreID   int64
	Year      int64
	Week      int64
	Quantity  int64
}

// StoreMapping translates an internal store id into the store number shown to users.
type StoreMapping struct {
	InternalStoreID    int64
	DisplayStoreNumber int64
}
