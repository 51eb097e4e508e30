package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CSVHeader is the column layout read and written by the CSV provider.
var CSVHeader = []string{"time", "open", "high", "low", "close", "volume"}

// CSVProvider serves candles from files named <SYMBOL>_<timeframe>.csv in Dir,
// e.g. BTC_4h.csv.
type CSVProvider struct {
	Dir string

	// Now anchors the lookback window. Zero means the last candle in the file.
	Now time.Time
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

// Path returns the file the provider reads for symbol and timeframe.
func (p *CSVProvider) Path(symbol, timeframe string) string {
	name := fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), strings.ToLower(timeframe))
	return filepath.Join(p.Dir, name)
}

func (p *CSVProvider) FetchOHLCV(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(p.Path(symbol, timeframe))
	if err != nil {
		return nil, fmt.Errorf("csv provider: %w", err)
	}
	defer f.Close()

	candles, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("csv provider %s: %w", symbol, err)
	}
	if lookbackDays <= 0 || len(candles) == 0 {
		return candles, nil
	}

	end := p.Now
	if end.IsZero() {
		end = candles[len(candles)-1].Time
	}
	start := end.Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	out := candles[:0]
	for _, c := range candles {
		if c.Time.Before(start) || c.Time.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadCSV parses time,open,high,low,close,volume rows. Time is RFC3339 or
// unix milliseconds. A header row is allowed; blank rows are skipped.
func ReadCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Candle
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("line %d: want at least 5 columns, got %d", line, len(row))
		}

		c, err := parseCandleRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
	return Sort(out), nil
}

func parseCandleRow(row []string) (Candle, error) {
	ts, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return Candle{}, err
	}

	vals := make([]float64, 5)
	for i := 1; i < len(row) && i <= 5; i++ {
		s := strings.TrimSpace(row[i])
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("bad %s %q: %w", CSVHeader[i], s, err)
		}
		vals[i-1] = v
	}

	return Candle{
		Time:   ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// WriteCSV writes candles with a header row.
func WriteCSV(w io.Writer, candles []Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, c := range candles {
		row := []string{
			c.Time.UTC().Format(time.RFC3339),
			f(c.Open),
			f(c.High),
			f(c.Low),
			f(c.Close),
			f(c.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes candles for symbol into the provider's directory.
func (p *CSVProvider) SaveCSV(symbol, timeframe string, candles []Candle) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", err
	}
	path := p.Path(symbol, timeframe)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := WriteCSV(out, candles); err != nil {
		return "", err
	}
	return path, nil
}

func f(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
