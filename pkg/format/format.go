// Package format renders exchange rate results for the command line.
package format

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

// Format is an output format.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	CSV  Format = "csv"
)

// ErrInvalidFormat is returned by ParseFormat for unknown formats.
var ErrInvalidFormat = errors.New("invalid output format")

// ParseFormat validates s (case-insensitive) as a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Text, JSON, CSV:
		return f, nil
	case "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: %q (want text, json or csv)", ErrInvalidFormat, s)
	}
}

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"AUD": "A$",
	"CAD": "C$",
	"CHF": "Fr",
	"INR": "₹",
}

// Symbol returns the display symbol for code, or "" when none is known.
func Symbol(code string) string {
	return symbols[code]
}

// Amount formats amount with two decimals and the currency symbol, e.g. "€89.61".
func Amount(amount float64, code string) string {
	return fmt.Sprintf("%s%.2f", Symbol(code), amount)
}

// Printer writes results to w in one format.
type Printer struct {
	w      io.Writer
	format Format
	label  *color.Color
}

// NewPrinter creates a printer. With useColor false, text output carries no
// escape codes; with true, color still follows the terminal detection of
// github.com/fatih/color.
func NewPrinter(w io.Writer, format Format, useColor bool) *Printer {
	label := color.New(color.Bold, color.FgGreen)
	if !useColor {
		label.DisableColor()
	}
	return &Printer{w: w, format: format, label: label}
}

// Latest writes one or more rate tables.
func (p *Printer) Latest(tables ...*rates.LatestResponse) error {
	switch p.format {
	case JSON:
		docs := make([]latestJSON, 0, len(tables))
		for _, t := range tables {
			docs = append(docs, latestJSON{
				BaseCurrency: t.BaseCode,
				LastUpdated:  t.TimeLastUpdateUTC,
				NextUpdate:   t.TimeNextUpdateUTC,
				Rates:        t.ConversionRates,
			})
		}
		if len(docs) == 1 {
			return p.writeJSON(docs[0])
		}
		return p.writeJSON(docs)

	case CSV:
		header := []string{"Currency Code", "Rate"}
		if len(tables) > 1 {
			header = append([]string{"Base"}, header...)
		}
		var records [][]string
		for _, t := range tables {
			for _, code := range t.Codes() {
				row := []string{code, formatRate(t.ConversionRates[code])}
				if len(tables) > 1 {
					row = append([]string{t.BaseCode}, row...)
				}
				records = append(records, row)
			}
		}
		return p.writeCSV(header, records)

	default:
		for i, t := range tables {
			if i > 0 {
				fmt.Fprintln(p.w)
			}
			if err := p.latestText(t); err != nil {
				return err
			}
		}
		return nil
	}
}

type latestJSON struct {
	BaseCurrency string             `json:"base_currency"`
	LastUpdated  string             `json:"last_updated,omitempty"`
	NextUpdate   string             `json:"next_update,omitempty"`
	Rates        map[string]float64 `json:"rates"`
}

func (p *Printer) latestText(t *rates.LatestResponse) error {
	fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint("Base Currency:"), t.BaseCode)
	if t.TimeLastUpdateUTC != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint("Last Updated:"), t.TimeLastUpdateUTC)
	}
	if t.TimeNextUpdateUTC != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint("Next Update:"), t.TimeNextUpdateUTC)
	}
	fmt.Fprintln(p.w)

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Code\tSymbol\tRate")
	for _, code := range t.Codes() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", code, Symbol(code), formatRate(t.ConversionRates[code]))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(p.w, "\n%s %d\n", p.label.Sprint("Total Currencies:"), len(t.ConversionRates))
	return err
}

// Conversion writes the result of converting amount from one currency to another.
func (p *Printer) Conversion(amount float64, from, to string, converted, rate float64) error {
	switch p.format {
	case JSON:
		return p.writeJSON(struct {
			Amount          float64 `json:"amount"`
			FromCurrency    string  `json:"from_currency"`
			ToCurrency      string  `json:"to_currency"`
			ConvertedAmount float64 `json:"converted_amount"`
			Rate            float64 `json:"rate"`
		}{amount, from, to, converted, rate})

	case CSV:
		return p.writeCSV(
			[]string{"Amount", "From Currency", "To Currency", "Converted Amount", "Rate"},
			[][]string{{
				strconv.FormatFloat(amount, 'f', 2, 64), from, to,
				strconv.FormatFloat(converted, 'f', 2, 64), formatRate(rate),
			}},
		)

	default:
		fmt.Fprintf(p.w, "%s %s %s = %s %s\n",
			p.label.Sprint("Conversion:"), Amount(amount, from), from, Amount(converted, to), to)
		_, err := fmt.Fprintf(p.w, "%s %s %s per %s\n", p.label.Sprint("Rate:"), formatRate(rate), to, from)
		return err
	}
}

// Pair writes a direct conversion rate.
func (p *Printer) Pair(from, to string, rate float64) error {
	switch p.format {
	case JSON:
		return p.writeJSON(struct {
			FromCurrency string  `json:"from_currency"`
			ToCurrency   string  `json:"to_currency"`
			Rate         float64 `json:"rate"`
		}{from, to, rate})

	case CSV:
		return p.writeCSV([]string{"From Currency", "To Currency", "Rate"}, [][]string{{from, to, formatRate(rate)}})

	default:
		_, err := fmt.Fprintf(p.w, "%s 1 %s = %s %s\n", p.label.Sprint("Conversion Rate:"), from, formatRate(rate), to)
		return err
	}
}

// Codes writes the supported currency list.
func (p *Printer) Codes(currencies []rates.Currency) error {
	switch p.format {
	case JSON:
		m := make(map[string]string, len(currencies))
		for _, c := range currencies {
			m[c.Code] = c.Name
		}
		return p.writeJSON(struct {
			Currencies map[string]string `json:"currencies"`
			Count      int               `json:"count"`
		}{m, len(currencies)})

	case CSV:
		records := make([][]string, 0, len(currencies))
		for _, c := range currencies {
			records = append(records, []string{c.Code, c.Name})
		}
		return p.writeCSV([]string{"Code", "Currency"}, records)

	default:
		fmt.Fprintf(p.w, "%s\n\n", p.label.Sprint("Supported Currency Codes"))
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Code\tCurrency")
		for _, c := range currencies {
			fmt.Fprintf(tw, "%s\t%s\n", c.Code, c.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(p.w, "\n%s %d\n", p.label.Sprint("Total Currencies:"), len(currencies))
		return err
	}
}

// Value writes an arbitrary value: indented JSON for the json format, a
// plain rendering otherwise.
func (p *Printer) Value(v any) error {
	if p.format == JSON {
		return p.writeJSON(v)
	}
	_, err := fmt.Fprintf(p.w, "%+v\n", v)
	return err
}

func (p *Printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) writeCSV(header []string, records [][]string) error {
	w := csv.NewWriter(p.w)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return w.Error()
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 4, 64)
}
