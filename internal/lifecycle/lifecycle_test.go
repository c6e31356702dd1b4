package lifecycle

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocThenDeallocProducesTwoOrderedLines(t *testing.T) {
	path := t.TempDir() + "/events.jsonl"
	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.LogAlloc(1000000, 0xdead, 0x1000, 1<<20, "KVCache_CPU", "CPU", 1, 0xFFFF))
	require.NoError(t, w.LogDealloc(2000000, 0xdead))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"event":"alloc"`)
	require.Contains(t, lines[0], `"buffer_id":57005`) // 0xdead
	require.Contains(t, lines[1], `"event":"dealloc"`)
	require.Contains(t, lines[1], `"buffer_id":57005`)
}

func TestUnnamedAndUnknownDefaults(t *testing.T) {
	path := t.TempDir() + "/events.jsonl"
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.LogAlloc(0, 1, 1, 1, "", "", 0, 0))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"name":"unnamed"`))
	require.True(t, strings.Contains(string(data), `"backend":"unknown"`))
}
