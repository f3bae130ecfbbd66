package schema

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/config"
	"github.com/wonny/skilltrack/pkg/logger"
)

var runTS = time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCandidatesPick(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		wantName string
		wantIdx  int
		wantOK   bool
	}{
		{"exact", []string{"date", "symbol", "pred"}, "symbol", 1, true},
		{"alias order wins over header order", []string{"Ticker", "symbol"}, "symbol", 1, true},
		{"capitalized alias", []string{"Date", "Ticker"}, "Ticker", 1, true},
		{"padded header", []string{" SYM "}, "SYM", 0, true},
		{"case sensitive", []string{"TICKER"}, "", -1, false},
		{"missing", []string{"date", "pred"}, "", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, name, ok := SymbolColumns.Pick(tt.header)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantIdx, idx)
		})
	}
}

func TestBindMissingRequired(t *testing.T) {
	_, err := Bind("artifacts/predictions/SP500/m.csv", []string{"date", "symbol", "score"})
	require.Error(t, err)

	var schemaErr *contracts.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, ConceptPrediction, schemaErr.Concept)
	assert.Equal(t, PredictionColumns.Aliases, schemaErr.Candidates)
}

func TestBindDefaulted(t *testing.T) {
	b, err := Bind("x.csv", []string{"date", "symbol", "pred", "model"})
	require.NoError(t, err)
	assert.Equal(t, []string{ConceptVersion, ConceptRunTimestamp}, b.Defaulted())
	assert.Equal(t, "model", b.Columns[ConceptModelName])
}

func TestCanonicalSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aapl", "AAPL", false},
		{"  msft ", "MSFT", false},
		{"brk.b", "BRK-B", false},
		{"BF/B", "BF-B", false},
		{"BRK_A", "BRK-A", false},
		{"", "", true},
		{"   ", "", true},
		{"ÄPFEL", "", true},
		{"A\tB", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CanonicalSymbol(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadSymbol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := day(2024, 1, 2)
	for _, in := range []string{
		"2024-01-02",
		"2024/01/02",
		"20240102",
		"2024-01-02T15:30:00Z",
		"2024-01-02T23:30:00-05:00",
		"2024-01-02 09:15:00",
		"2024-01-02T09:15:00",
		"01/02/2024",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, bad := range []string{"", "yesterday", "2024-13-40"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrBadDate, bad)
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(" 0.0125 ")
	require.NoError(t, err)
	assert.Equal(t, 0.0125, v)

	for _, bad := range []string{"", "NaN", "Inf", "-inf", "abc"} {
		_, err := ParseValue(bad)
		assert.ErrorIs(t, err, ErrBadValue, bad)
	}
}

func TestDecodeTickerDateAliases(t *testing.T) {
	input := "Date,Ticker,pred\n2024-01-02,aapl,0.01\n2024-01-03,msft,-0.02\n"

	dec := NewDecoder(runTS, logger.Nop())
	out, err := dec.Decode("artifacts/predictions/SP500/m.csv", strings.NewReader(input), contracts.UniverseSP500)
	require.NoError(t, err)

	require.Len(t, out.Records, 2)
	assert.Equal(t, 0, out.Dropped)

	first := out.Records[0]
	assert.Equal(t, day(2024, 1, 2), first.Date)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, contracts.UniverseSP500, first.Universe)
	assert.Equal(t, 0.01, first.PredLogRet)
	assert.Equal(t, DefaultModelName, first.ModelName)
	assert.Equal(t, DefaultVersion, first.Version)
	assert.Equal(t, runTS, first.RunTimestamp)
	assert.Equal(t, "MSFT", out.Records[1].Symbol)
}

func TestDecodeDropsBadRows(t *testing.T) {
	input := strings.Join([]string{
		"date,symbol,pred_log_ret,model_name,version",
		"2024-01-02,AAPL,0.01,lgbm,v2",
		"2024-01-02,MSFT,,lgbm,v2",
		"not-a-date,GOOG,0.02,lgbm,v2",
		"2024-01-02,,0.02,lgbm,v2",
		"2024-01-02,NVDA,NaN,lgbm,v2",
		",,,,",
		"2024-01-02,AMZN,0.03",
	}, "\n")

	dec := NewDecoder(runTS, logger.Nop())
	out, err := dec.Decode("p.csv", strings.NewReader(input), contracts.UniverseDOW30)
	require.NoError(t, err)

	require.Len(t, out.Records, 2)
	assert.Equal(t, "lgbm", out.Records[0].ModelName)
	assert.Equal(t, "v2", out.Records[0].Version)
	assert.Equal(t, DefaultModelName, out.Records[1].ModelName, "short row falls back to defaults")

	assert.Equal(t, 4, out.Dropped)
	assert.Equal(t, 2, out.DropReasons[ErrBadValue.Error()])
	assert.Equal(t, 1, out.DropReasons[ErrBadDate.Error()])
	assert.Equal(t, 1, out.DropReasons[ErrBadSymbol.Error()])
}

func TestDecodeCountsEmptyOptionalCells(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCells map[string]int
		wantLog   []string
	}{
		{
			name: "blank cells in present columns",
			input: "date,symbol,pred_log_ret,model_name,version\n" +
				"2024-01-02,AAPL,0.01,lgbm,v2\n" +
				"2024-01-02,MSFT,0.02,,v2\n" +
				"2024-01-02,GOOG,0.03, ,\n" +
				"2024-01-02,NVDA,0.04\n",
			wantCells: map[string]int{ConceptModelName: 3, ConceptVersion: 2},
			wantLog:   []string{`"empty_cells":"model_name=3,version=2"`, `"defaulted":"run_timestamp"`},
		},
		{
			name: "absent columns only",
			input: "date,symbol,pred_log_ret\n" +
				"2024-01-02,AAPL,0.01\n",
			wantCells: map[string]int{},
			wantLog:   []string{`"empty_cells":""`, `"defaulted":"model_name,version,run_timestamp"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&config.Config{LogLevel: "info", LogFormat: "json"}, &buf)

			out, err := NewDecoder(runTS, log).Decode("p.csv", strings.NewReader(tt.input), contracts.UniverseSP500)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCells, out.EmptyCells)
			for _, r := range out.Records {
				assert.NotEmpty(t, r.ModelName)
				assert.NotEmpty(t, r.Version)
			}

			logged := buf.String()
			assert.Equal(t, 1, strings.Count(logged, "Applying column defaults"))
			for _, want := range tt.wantLog {
				assert.Contains(t, logged, want)
			}
		})
	}
}

func TestDecodeEmptyFileIsSchemaError(t *testing.T) {
	dec := NewDecoder(runTS, logger.Nop())
	_, err := dec.Decode("empty.csv", strings.NewReader(""), contracts.UniverseSP500)

	var schemaErr *contracts.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

func TestEncodeDecodeIdempotent(t *testing.T) {
	input := strings.Join([]string{
		"as_of,SYM,y_hat,model,model_version,run_ts",
		"2024/01/02,brk.b,0.1,ridge,v3,2024-01-02T21:00:00.123456789Z",
		"20240103,aapl,-1e-05,ridge,v3,2024-01-03 21:00:00",
		"2024-01-04,MSFT,0.30000000000000004,ridge,v3,",
	}, "\n")

	dec := NewDecoder(runTS, logger.Nop())
	first, err := dec.Decode("f.csv", strings.NewReader(input), contracts.UniverseNASDAQ100)
	require.NoError(t, err)
	require.Len(t, first.Records, 3)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, first.Records))

	second, err := dec.Decode("f.csv", bytes.NewReader(buf.Bytes()), contracts.UniverseNASDAQ100)
	require.NoError(t, err)
	require.Len(t, second.Records, len(first.Records))

	for i := range first.Records {
		a, b := first.Records[i], second.Records[i]
		assert.Equal(t, a.Key(), b.Key())
		assert.Equal(t, a.PredLogRet, b.PredLogRet)
		assert.True(t, a.RunTimestamp.Equal(b.RunTimestamp))
	}

	var again bytes.Buffer
	require.NoError(t, Encode(&again, second.Records))
	assert.Equal(t, buf.String(), again.String())
}
