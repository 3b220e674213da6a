package api

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"bag-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

var exportHeaders = []string{
	"Order Number", "Order Date", "Delivery Date", "Items", "Artwork IDs", "Titles",
	"Promo Code", "Promo Discount", "Total Original", "Total Discount",
	"Convenience Fee", "Final Total", "Currency",
}

// WriteOrdersXLSX writes one row per order to w
func WriteOrdersXLSX(w io.Writer, orders []models.OrderRecord) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range exportHeaders {
		headerRow.AddCell().SetString(h)
	}

	for _, o := range orders {
		ids := make([]string, 0, len(o.Items))
		titles := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			ids = append(ids, strconv.FormatInt(item.Artwork.ID, 10))
			titles = append(titles, item.Artwork.Title)
		}

		row := sheet.AddRow()
		row.AddCell().SetString(o.OrderNumber)
		row.AddCell().SetString(o.OrderDate.Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(o.DeliveryDate)
		row.AddCell().SetInt(len(o.Items))
		row.AddCell().SetString(strings.Join(ids, ","))
		row.AddCell().SetString(strings.Join(titles, "; "))
		row.AddCell().SetString(o.PromoCode)
		addAmount(row, o.PromoDiscount)
		addAmount(row, o.Summary.TotalOriginal)
		addAmount(row, o.Summary.TotalDiscount)
		addAmount(row, o.Summary.ConvenienceFee)
		addAmount(row, o.Summary.FinalTotal)
		row.AddCell().SetString(o.Summary.Currency)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func addAmount(row *xlsx.Row, amount decimal.Decimal) {
	row.AddCell().SetFloat(amount.InexactFloat64())
}
