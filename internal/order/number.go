package order

import (
	"fmt"
	"time"
)

// DeliveryDateLayout is the display format of delivery dates
const DeliveryDateLayout = "Mon, 02 Jan 2006"

// DefaultDeliveryDays is the delivery estimate from the placement date
const DefaultDeliveryDays = 7

// GenerateOrderNumber formats AW-<year>-<4 digit random>.
// intn returns a value in [0, n). Numbers are not checked for collisions.
func GenerateOrderNumber(now time.Time, intn func(n int) int) string {
	return fmt.Sprintf("AW-%d-%04d", now.Year(), intn(10000))
}

// DeliveryDate returns the display date days after now
func DeliveryDate(now time.Time, days int) string {
	return now.AddDate(0, 0, days).Format(DeliveryDateLayout)
}
