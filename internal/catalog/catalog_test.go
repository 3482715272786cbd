package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// Tokenize
// =============================================================================

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted comma", `A,"B,C",D`, []string{"A", "B,C", "D"}},
		{"escaped quote", `A,"B""C",D`, []string{"A", `B"C`, "D"}},
		{"empty line", "", []string{""}},
		{"trailing comma", "a,", []string{"a", ""}},
		{"only commas", ",,", []string{"", "", ""}},
		{"unterminated quote keeps rest", `a,"b,c`, []string{"a", "b,c"}},
		{"quoted empty", `"",x`, []string{"", "x"}},
		{"utf8 content", `"Açaí, bowl",Frühstück`, []string{"Açaí, bowl", "Frühstück"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line))
		})
	}
}

func TestTokenize_Idempotent(t *testing.T) {
	line := `Caesar Salad,"Classic, ""House""",gm350,250,350,15,25,18,5,3`
	assert.Equal(t, Tokenize(line), Tokenize(line))
}

// =============================================================================
// ValidateRow
// =============================================================================

func validFields() []string {
	return []string{"Caesar Salad", "Classic", "gm350", "250", "350", "15", "25", "18", "5", "3"}
}

func withField(idx int, value string) []string {
	f := validFields()
	f[idx] = value
	return f
}

func TestValidateRow_Valid(t *testing.T) {
	got := ValidateRow([]string{"  Caesar Salad ", " Classic", "GM350", "12.9", "350", "15", "25", "18", "5", "3"}, 2)

	require.True(t, got.Valid())
	assert.Empty(t, got.Error)
	assert.Equal(t, 2, got.Row)
	assert.Equal(t, Product{
		Name:     "Caesar Salad",
		Category: "Classic",
		BowlType: BowlGM350,
		Price:    12,
		Calories: 350,
		Protein:  15,
		Carbs:    25,
		Fat:      18,
		Fiber:    5,
		Sugar:    3,
		Active:   true,
		Recipe:   []RecipeItem{},
	}, *got.Product)
}

func TestValidateRow_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fields   []string
		wantRule Rule
		wantErr  string
	}{
		{
			name:     "too few columns",
			fields:   []string{"a", "b", "c"},
			wantRule: RuleColumns,
			wantErr:  "Row 7: Insufficient columns (expected 10, got 3)",
		},
		{
			name:     "blank line",
			fields:   []string{""},
			wantRule: RuleColumns,
			wantErr:  "Row 7: Insufficient columns (expected 10, got 1)",
		},
		{
			name:     "missing name",
			fields:   withField(colName, "   "),
			wantRule: RuleName,
			wantErr:  "Row 7: Name is required",
		},
		{
			name:     "missing category",
			fields:   withField(colCategory, ""),
			wantRule: RuleCategory,
			wantErr:  "Row 7: Category is required",
		},
		{
			name:     "unknown bowl type",
			fields:   withField(colBowlType, "large"),
			wantRule: RuleBowlType,
			wantErr:  "Row 7: Invalid bowl type (must be: gm250, gm350, gm500, or custom)",
		},
		{
			name:     "blank price",
			fields:   withField(colPrice, " "),
			wantRule: RulePrice,
			wantErr:  "Row 7: Invalid price value",
		},
		{
			name:     "negative price",
			fields:   withField(colPrice, "-1"),
			wantRule: RulePrice,
			wantErr:  "Row 7: Invalid price value",
		},
		{
			name:     "text calories",
			fields:   withField(colCalories, "lots"),
			wantRule: RuleNutrition,
			wantErr:  "Row 7: Invalid nutritional values",
		},
		{
			name:     "blank sugar",
			fields:   withField(colSugar, ""),
			wantRule: RuleNutrition,
			wantErr:  "Row 7: Invalid nutritional values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateRow(tt.fields, 7)
			assert.False(t, got.Valid())
			assert.Nil(t, got.Product)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantErr, got.Error)
		})
	}
}

func TestValidateRow_FirstFailureWins(t *testing.T) {
	fields := validFields()
	fields[colName] = ""
	fields[colBowlType] = "large"
	fields[colPrice] = "abc"

	got := ValidateRow(fields, 3)
	assert.Equal(t, "Row 3: Name is required", got.Error)
}

func TestValidateRow_ExtraColumnsIgnored(t *testing.T) {
	got := ValidateRow(append(validFields(), "extra", "more"), 2)
	assert.True(t, got.Valid())
}

func TestParseBowlType_CaseInsensitive(t *testing.T) {
	for _, in := range []string{"gm250", "GM250", " Gm250 "} {
		bt, ok := ParseBowlType(in)
		assert.True(t, ok, in)
		assert.Equal(t, BowlGM250, bt, in)
	}

	_, ok := ParseBowlType("gm 250")
	assert.False(t, ok)
}

func TestBowlType_UnmarshalJSON(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"bowlType":"CUSTOM"}`), &p))
	assert.Equal(t, BowlCustom, p.BowlType)

	err := json.Unmarshal([]byte(`{"bowlType":"huge"}`), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid enum")
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"12", 12, true},
		{"12.9", 12, true},
		{" 0 ", 0, true},
		{"0.99", 0, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"-1", 0, false},
		{"-0.5", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1e300", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseQuantity(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseQuantity(%q) ok", tt.in)
		assert.Equal(t, tt.want, got, "ParseQuantity(%q)", tt.in)
	}
}

// =============================================================================
// ParseDocument
// =============================================================================

func TestParseDocument_MixedRows(t *testing.T) {
	doc := strings.Join([]string{
		"name,category,bowlType,price,calories,protein,carbs,fat,fiber,sugar",
		"Caesar Salad,Classic,gm350,250,350,15,25,18,5,3",
		"Greek Salad,Mediterranean,gm250,200,280,12,20,15,4,2",
		",Classic,gm350,250,350,15,25,18,5,3",
		"Big Bowl,Classic,large,250,350,15,25,18,5,3",
	}, "\n")

	res := ParseDocument(doc)

	require.Equal(t, 4, res.Len())
	assert.Equal(t, 2, res.ValidCount())
	assert.Equal(t, 2, res.InvalidCount())

	rows := res.Rows()
	assert.True(t, rows[0].Valid())
	assert.True(t, rows[1].Valid())
	assert.Nil(t, rows[2].Product)
	assert.Equal(t, "Row 4: Name is required", rows[2].Error)
	assert.Nil(t, rows[3].Product)
	assert.True(t, strings.HasPrefix(rows[3].Error, "Row 5: Invalid bowl type"))

	products := res.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "Caesar Salad", products[0].Name)
	assert.Equal(t, "Greek Salad", products[1].Name)
	assert.Equal(t, []string{rows[2].Error, rows[3].Error}, res.Errors())
}

func TestParseDocument_HeaderOnly(t *testing.T) {
	for _, doc := range []string{"", "   ", "name,category\n", "name,category\n\n\n"} {
		res := ParseDocument(doc)
		assert.Equal(t, 0, res.Len(), "doc %q", doc)
		assert.Empty(t, res.Products())
	}
}

func TestParseDocument_CRLFAndBlankInteriorLine(t *testing.T) {
	doc := "h\r\nCaesar Salad,Classic,gm350,250,350,15,25,18,5,3\r\n\r\nGreek Salad,Mediterranean,gm250,200,280,12,20,15,4,2\r\n"

	res := ParseDocument(doc)
	rows := res.Rows()

	require.Equal(t, 3, res.Len())
	assert.True(t, rows[0].Valid())
	assert.Equal(t, "Row 3: Insufficient columns (expected 10, got 1)", rows[1].Error)
	assert.True(t, rows[2].Valid())
	assert.Equal(t, int64(2), rows[2].Product.Sugar)
}

func TestParseDocument_HeaderNotValidated(t *testing.T) {
	doc := "totally,different,header\nCaesar Salad,Classic,gm350,250,350,15,25,18,5,3"
	assert.Equal(t, 1, ParseDocument(doc).ValidCount())
}

func TestParseDocument_CountsAlwaysSum(t *testing.T) {
	docs := []string{
		"h\na",
		"h\n,,,,,,,,,\n\n",
		string(Template()),
		"h\n" + strings.Repeat("x,Classic,gm250,1,1,1,1,1,1,1\n,,\n", 10),
	}
	for _, doc := range docs {
		res := ParseDocument(doc)
		assert.Equal(t, res.Len(), res.ValidCount()+res.InvalidCount())
	}
}

func TestImportResult_RowsIsACopy(t *testing.T) {
	res := ParseDocument(string(Template()))
	rows := res.Rows()
	rows[0].Error = "mutated"
	rows[0].Product = nil

	assert.Equal(t, 3, res.ValidCount())
	assert.Empty(t, res.Rows()[0].Error)
}

func TestImportResult_JSON(t *testing.T) {
	res := ParseDocument("h\nCaesar Salad,Classic,gm350,250,350,15,25,18,5,3\nbad")

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 1, decoded["validCount"])
	assert.EqualValues(t, 1, decoded["invalidCount"])

	var back ImportResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.Rows(), back.Rows())
}

// =============================================================================
// Template and export
// =============================================================================

func TestTemplate_RoundTrip(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(string(Template())), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name,category,bowlType,price,calories,protein,carbs,fat,fiber,sugar", lines[0])

	seen := map[BowlType]bool{}
	for i, line := range lines[1:] {
		got := ValidateRow(Tokenize(line), i+2)
		require.True(t, got.Valid(), got.Error)
		seen[got.Product.BowlType] = true
	}
	assert.Len(t, seen, 3)
}

func TestTemplate_Deterministic(t *testing.T) {
	assert.Equal(t, Template(), Template())
}

func TestWriteExport_ReimportsCleanly(t *testing.T) {
	products := ParseDocument(string(Template())).Products()
	products[0].Name = `Chef's "Special", Large`

	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, products))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `"name","category","bowlType","price","calories","protein","carbs","fat","fiber","sugar","active"`, lines[0])
	assert.True(t, strings.HasSuffix(lines[1], `,"true"`))

	res := ParseDocument(buf.String())
	require.Equal(t, 3, res.ValidCount())
	assert.Equal(t, products, res.Products())
}

func TestExportFilename(t *testing.T) {
	day := time.Date(2024, 3, 7, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "menu_items_export_2024-03-07.csv", ExportFilename(day))
}

// =============================================================================
// Charset and spreadsheets
// =============================================================================

func TestDecodeText(t *testing.T) {
	got, err := DecodeText(append([]byte{0xEF, 0xBB, 0xBF}, "h\nx"...))
	require.NoError(t, err)
	assert.Equal(t, "h\nx", got)

	// "Café" in Windows-1252
	got, err = DecodeText([]byte{'C', 'a', 'f', 0xE9})
	require.NoError(t, err)
	assert.Equal(t, "Café", got)

	_, err = DecodeText([]byte{0xEF, 0xBB, 0xBF})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	rows := [][]any{
		header,
		{"Caesar Salad", "Classic", "gm350", "250", "350", "15", "25", "18", "5", "3"},
		{"Greek Salad", "Mediterranean", "gm250", "200", "280", "12", "20", "15", "4"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := ParseSpreadsheet(buf)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.True(t, res.Rows()[0].Valid())
	assert.Equal(t, "Row 3: Invalid nutritional values", res.Rows()[1].Error)
}

func TestParseSpreadsheet_NotAWorkbook(t *testing.T) {
	_, err := ParseSpreadsheet(strings.NewReader("name,category\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid xlsx")
}

func TestBlankRowAndPad(t *testing.T) {
	assert.True(t, blankRow(nil))
	assert.True(t, blankRow([]string{"", "  "}))
	assert.False(t, blankRow([]string{"", "x"}))
	assert.Equal(t, []string{"a", "", ""}, padRow([]string{"a"}, 3))
	assert.Equal(t, []string{"a", "b"}, padRow([]string{"a", "b"}, 1))
}
