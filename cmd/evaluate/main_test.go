package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

func TestReadCSV(t *testing.T) {
	input := "text,stage\n" +
		"寶貝我好想你,1\n" +
		"\"快匯款, 拜託\",4\n" +
		"no label here\n" +
		",3\n"

	got, err := readCSV(strings.NewReader(input))
	require.NoError(t, err)

	want := []sample{
		{Text: "寶貝我好想你", Stage: 1, Labelled: true},
		{Text: "快匯款, 拜託", Stage: 4, Labelled: true},
		{Text: "no label here"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"bad stage after header", "text,stage\nhello,x\n", "row 2: invalid stage"},
		{"out of range", "hello,9\n", "row 1: stage 9 out of range 0..6"},
		{"negative", "hello,-1\n", "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadLines(t *testing.T) {
	got, err := readLines(strings.NewReader("第一句\n\n  第二句  \r\n"))
	require.NoError(t, err)
	assert.Equal(t, []sample{{Text: "第一句"}, {Text: "第二句"}}, got)
}

func TestParseEncoding(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF8", "big5", "Big5"} {
		_, err := parseEncoding(name)
		assert.NoError(t, err, name)
	}
	_, err := parseEncoding("gbk")
	assert.Error(t, err)
}

func TestReadSamplesFile_Big5(t *testing.T) {
	encoded, err := traditionalchinese.Big5.NewEncoder().String("寶貝快點匯款\n醫院要繳費\n")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))

	enc, err := parseEncoding("big5")
	require.NoError(t, err)
	got, err := readSamplesFile(path, enc)
	require.NoError(t, err)
	assert.Equal(t, []sample{{Text: "寶貝快點匯款"}, {Text: "醫院要繳費"}}, got)
}

func TestReadSamplesFile_UTF8BOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufefftext,stage\nhello,0\n"), 0o600))

	enc, err := parseEncoding("utf-8")
	require.NoError(t, err)
	got, err := readSamplesFile(path, enc)
	require.NoError(t, err)
	assert.Equal(t, []sample{{Text: "hello", Stage: 0, Labelled: true}}, got)
}

type stubDetector map[string]int

func (s stubDetector) DetectRules(text string) detection.DetectionResult {
	return detection.DetectionResult{Stage: s[text], Labels: []string{"payment"}}
}

func TestEvaluate(t *testing.T) {
	d := stubDetector{"a": 4, "b": 2, "c": 0}
	samples := []sample{
		{Text: "a", Stage: 4, Labelled: true},
		{Text: "b", Stage: 3, Labelled: true},
		{Text: "c"},
	}

	rep, err := evaluate(context.Background(), d, samples, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Labelled)
	assert.Equal(t, 1, rep.Correct)
	assert.InDelta(t, 0.5, rep.Accuracy(), 1e-9)
	assert.Equal(t, 1, rep.Distribution[0])
	assert.Equal(t, 1, rep.Distribution[2])
	assert.Equal(t, 1, rep.Distribution[4])
	assert.Equal(t, 1, rep.Confusion[4][4])
	assert.Equal(t, 1, rep.Confusion[3][2])
	assert.Equal(t, map[string]int{"payment": 3}, rep.Labels)

	var buf bytes.Buffer
	rep.Print(&buf)
	assert.Contains(t, buf.String(), "messages: 3")
	assert.Contains(t, buf.String(), "accuracy: 50.0% (1/2)")
	assert.Contains(t, buf.String(), "confusion matrix")
}

func TestEvaluate_Unlabelled(t *testing.T) {
	rep, err := evaluate(context.Background(), stubDetector{}, []sample{{Text: "x"}}, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	rep.Print(&buf)
	assert.NotContains(t, buf.String(), "accuracy")
	assert.Zero(t, rep.Accuracy())
}

func TestEvaluate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := evaluate(ctx, stubDetector{}, []sample{{Text: "x"}, {Text: "y"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRootCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(path, []byte("text,stage\n你好,0\n寶貝快點匯款,4\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--workers", "2", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "messages: 2")
	assert.Contains(t, out.String(), "payment")
	assert.Contains(t, out.String(), "accuracy:")
}
