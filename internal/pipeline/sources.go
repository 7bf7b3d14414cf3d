package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"smartrab/internal"
	"smartrab/internal/util"
)

// Rendered sources (sheets, html tables, pdf pages) are written out with this
// delimiter so they flow through the same text pipeline as csv exports.
const renderDelimiter = ';'

var (
	ErrUnsupportedSource = errors.New("unsupported source")

	reColumnGap = regexp.MustCompile(`\s{2,}|\t+`)
	reHTMLTable = regexp.MustCompile(`(?i)<table`)
)

// SupportedExtension reports whether LoadSources knows how to read name.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xlsx", ".xlsm", ".xls", ".html", ".htm", ".pdf", ".eml":
		return true
	}
	return false
}

// LoadSources turns one file into the raw records the pipeline parses. Most
// files yield one record; workbooks yield one per sheet and mails one per
// usable attachment.
func LoadSources(name string, content []byte) ([]internal.RawRecord, error) {
	base := filepath.Base(name)
	switch ext := strings.ToLower(filepath.Ext(base)); ext {
	case ".csv", ".txt":
		return []internal.RawRecord{NewTextRecord(base, content)}, nil
	case ".xlsx", ".xlsm":
		return xlsxRecords(base, content)
	case ".html", ".htm":
		return htmlRecords(base, content)
	case ".xls":
		// old "xls" exports are often html tables under a spreadsheet name
		if reHTMLTable.Match(content) {
			return htmlRecords(base, content)
		}
		return nil, fmt.Errorf("%s: binary xls: %w", base, ErrUnsupportedSource)
	case ".pdf":
		return pdfRecords(base, content)
	case ".eml":
		return emlRecords(base, content)
	default:
		return nil, fmt.Errorf("%s: %w", base, ErrUnsupportedSource)
	}
}

func renderedRecord(name string, kind internal.SourceKind, rows [][]string) (internal.RawRecord, error) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	buf := bytes.NewBuffer(nil)
	w := csv.NewWriter(buf)
	w.Comma = renderDelimiter
	for _, row := range rows {
		cells := make([]string, width)
		for i, c := range row {
			cells[i] = util.NormalizeSpaces(c)
		}
		if err := w.Write(cells); err != nil {
			return internal.RawRecord{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return internal.RawRecord{}, err
	}

	return internal.RawRecord{
		Name:      name,
		Kind:      kind,
		Content:   buf.Bytes(),
		Encoding:  encodingUTF8,
		Delimiter: renderDelimiter,
		Lines:     SplitLines(buf.String()),
	}, nil
}

func xlsxRecords(name string, content []byte) ([]internal.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	out := make([]internal.RawRecord, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		recName := name
		if len(sheets) > 1 {
			recName = fmt.Sprintf("%s[%s]", name, sheet)
		}
		rec, err := renderedRecord(recName, internal.SourceXLSX, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func htmlRecords(name string, content []byte) ([]internal.RawRecord, error) {
	text, _ := DecodeText(content)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", name, err)
	}

	tables := doc.Find("table")
	out := []internal.RawRecord{}
	tables.Each(func(i int, table *goquery.Selection) {
		rows := [][]string{}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) == 0 {
			return
		}
		recName := name
		if tables.Length() > 1 {
			recName = fmt.Sprintf("%s[table %d]", name, i+1)
		}
		if rec, err := renderedRecord(recName, internal.SourceHTML, rows); err == nil {
			out = append(out, rec)
		}
	})
	return out, nil
}

func pdfRecords(name string, content []byte) ([]internal.RawRecord, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", name, err)
	}

	rows := [][]string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range SplitLines(text) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			rows = append(rows, reColumnGap.Split(line, -1))
		}
	}

	rec, err := renderedRecord(name, internal.SourcePDF, rows)
	if err != nil {
		return nil, err
	}
	return []internal.RawRecord{rec}, nil
}

func emlRecords(name string, content []byte) ([]internal.RawRecord, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("read mail %s: %w", name, err)
	}

	out := []internal.RawRecord{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" || !SupportedExtension(filename) || strings.EqualFold(filepath.Ext(filename), ".eml") {
			continue
		}
		recs, err := LoadSources(filename, att.Content)
		if err != nil {
			continue
		}
		for i := range recs {
			recs[i].Name = name + "/" + recs[i].Name
		}
		out = append(out, recs...)
	}

	if reHTMLTable.MatchString(env.HTML) {
		recs, err := htmlRecords(name+"/body.html", []byte(env.HTML))
		if err == nil {
			out = append(out, recs...)
		}
	}
	return out, nil
}
