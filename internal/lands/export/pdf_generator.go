package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions configures the listing sheet
type PDFOptions struct {
	Title      string
	FontFamily string
	FontSize   float64
	DateFormat string
	Currency   string
}

// DefaultPDFOptions returns the layout used by /lands/:id/sheet.pdf
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		Title:      "Yer maydoni",
		FontFamily: "Arial",
		FontSize:   11,
		DateFormat: "2006-01-02",
		Currency:   "so'm",
	}
}

// PDFGenerator renders a one-page sheet for a single listing
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	options PDFOptions
}

func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	return &PDFGenerator{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		options: options,
	}
}

// RenderListing lays out the listing details, price breakdown and footer
func (g *PDFGenerator) RenderListing(l Listing, generatedAt time.Time) error {
	o := g.options
	g.pdf.SetFooterFunc(func() {
		g.pdf.SetY(-15)
		g.pdf.SetFont(o.FontFamily, "I", 8)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 10, g.tr(generatedAt.Format(o.DateFormat)), "", 0, "R", false, 0, "")
	})
	g.pdf.AddPage()

	title := l.Title
	if title == "" {
		title = o.Title
	}
	g.pdf.SetFont(o.FontFamily, "B", 16)
	g.pdf.CellFormat(0, 10, g.tr(title), "", 1, "C", false, 0, "")
	g.pdf.Ln(4)

	rows := [][2]string{
		{"Viloyat", l.Region},
		{"Tuman", l.District},
		{"Manzil", l.Location},
		{"Maydon", fmt.Sprintf("%.2f ga", l.SelectedArea)},
		{"1 ga narxi", fmt.Sprintf("%s %s", formatAmount(l.PricePerHectare), o.Currency)},
		{"Umumiy narx", fmt.Sprintf("%s %s", formatAmount(l.TotalPrice), o.Currency)},
	}
	if l.HasCentroid {
		rows = append(rows, [2]string{"Markaz", fmt.Sprintf("%.6f, %.6f", l.CentroidLat, l.CentroidLng)})
	}
	if !l.CreatedAt.IsZero() {
		rows = append(rows, [2]string{"Yaratilgan", l.CreatedAt.Format(o.DateFormat)})
	}

	for i, row := range rows {
		fill := i%2 == 1
		g.pdf.SetFillColor(242, 242, 242)
		g.pdf.SetFont(o.FontFamily, "B", o.FontSize)
		g.pdf.CellFormat(50, 8, g.tr(row[0]), "1", 0, "L", fill, 0, "")
		g.pdf.SetFont(o.FontFamily, "", o.FontSize)
		g.pdf.CellFormat(0, 8, g.tr(row[1]), "1", 1, "L", fill, 0, "")
	}

	if l.Description != "" {
		g.pdf.Ln(6)
		g.pdf.SetFont(o.FontFamily, "B", o.FontSize)
		g.pdf.CellFormat(0, 8, g.tr("Tavsif"), "", 1, "L", false, 0, "")
		g.pdf.SetFont(o.FontFamily, "", o.FontSize)
		g.pdf.MultiCell(0, 6, g.tr(l.Description), "", "L", false)
	}

	return g.pdf.Error()
}

func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

// OutputToBytes returns the PDF as bytes
func (g *PDFGenerator) OutputToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatAmount groups thousands with spaces: 15000000.5 -> "15 000 000.50"
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	neg := false
	if intPart != "" && intPart[0] == '-' {
		neg = true
		intPart = intPart[1:]
	}
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, intPart[i])
	}
	if neg {
		out = append([]byte{'-'}, out...)
	}
	return string(out) + frac
}
