package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorgu/querybank/registry"
)

func streamSources() registry.Source {
	return registry.Source{
		"read_stats": "SELECT stat_id, stat_name FROM tbl_stat WHERE stat_name ILIKE %(search_percent)s",
	}
}

func statRows(n int) (columns []string, data [][]any) {
	columns = []string{"stat_id", "stat_name"}
	for i := 0; i < n; i++ {
		data = append(data, []any{i + 1, fmt.Sprintf("stat_%03d", i+1)})
	}
	return columns, data
}

func collectChunks(t *testing.T, st *CSVStream) [][]byte {
	t.Helper()
	var chunks [][]byte
	for {
		chunk, err := st.Next(context.Background())
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestReadPartialCSV(t *testing.T) {
	columns, data := statRows(250)
	eng, dialer, err := newTestEngine(streamSources(), cursorHandler(columns, data), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	st, err := eng.ReadPartialCSV(context.Background(), "read_stats",
		Params{"search_percent": "%stat%"})
	require.NoError(t, err)

	chunks := collectChunks(t, st)
	require.Len(t, chunks, 3)

	// BOM and header only on the first chunk.
	assert.True(t, bytes.HasPrefix(chunks[0], []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(chunks[0]), "stat_id,stat_name\n")
	for _, chunk := range chunks[1:] {
		assert.False(t, bytes.HasPrefix(chunk, []byte{0xEF, 0xBB, 0xBF}))
		assert.NotContains(t, string(chunk), "stat_id,stat_name")
	}

	// Concatenated data rows equal the full result set.
	all := string(bytes.TrimPrefix(bytes.Join(chunks, nil), []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimRight(all, "\n"), "\n")
	require.Len(t, lines, 251) // header + 250 rows
	assert.Equal(t, "1,stat_001", lines[1])
	assert.Equal(t, "250,stat_250", lines[250])

	// Cursor and transaction are settled; the connection went back.
	statements := dialer.allStatements()
	assert.Contains(t, statements[0], "DECLARE cur_partial_")
	assert.Contains(t, statements[0], "ILIKE $1")
	assert.Contains(t, statements[len(statements)-1], "CLOSE cur_partial_")
	assert.True(t, dialer.lastTx().committed)
	assert.Equal(t, 0, eng.Pool().Stats().InUse)

	// The stream is terminal once exhausted.
	_, err = st.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, st.Close(context.Background()))
}

func TestReadPartialCSVPageSize(t *testing.T) {
	columns, data := statRows(5)
	eng, dialer, err := newTestEngine(streamSources(), cursorHandler(columns, data), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	st, err := eng.ReadPartialCSV(context.Background(), "read_stats",
		Params{"search_percent": "%"}, WithPageSize(2))
	require.NoError(t, err)

	chunks := collectChunks(t, st)
	assert.Len(t, chunks, 3) // 2 + 2 + 1
	assert.Contains(t, dialer.allStatements()[1], "FETCH 2 FROM")
}

func TestReadPartialCSVEmptyResult(t *testing.T) {
	columns, _ := statRows(0)
	eng, _, err := newTestEngine(streamSources(), cursorHandler(columns, nil), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	st, err := eng.ReadPartialCSV(context.Background(), "read_stats",
		Params{"search_percent": "%"})
	require.NoError(t, err)

	chunks := collectChunks(t, st)
	assert.Empty(t, chunks)
	assert.Equal(t, 0, eng.Pool().Stats().InUse)
}

func TestReadPartialCSVEarlyClose(t *testing.T) {
	columns, data := statRows(250)
	eng, dialer, err := newTestEngine(streamSources(), cursorHandler(columns, data), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	st, err := eng.ReadPartialCSV(context.Background(), "read_stats",
		Params{"search_percent": "%"})
	require.NoError(t, err)

	_, err = st.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close(context.Background()))

	// Abandonment closed the cursor, rolled back, and released.
	statements := dialer.allStatements()
	assert.Contains(t, statements[len(statements)-1], "CLOSE cur_partial_")
	assert.True(t, dialer.lastTx().rolledBack)
	assert.Equal(t, 0, eng.Pool().Stats().InUse)

	_, err = st.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadPartialCSVCamelizedHeader(t *testing.T) {
	columns, data := statRows(1)
	eng, _, err := newTestEngine(streamSources(), cursorHandler(columns, data), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	st, err := eng.ReadPartialCSV(context.Background(), "read_stats",
		Params{"search_percent": "%"}, WithCamelize())
	require.NoError(t, err)

	chunks := collectChunks(t, st)
	require.Len(t, chunks, 1)
	assert.Contains(t, string(chunks[0]), "statId,statName\n")
}

func TestScopedReadPartialCSVSharesTransaction(t *testing.T) {
	columns, data := statRows(3)
	eng, dialer, err := newTestEngine(streamSources(), cursorHandler(columns, data), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	err = eng.WithScope(context.Background(), func(s *Session) error {
		st, err := s.ReadPartialCSV(context.Background(), "read_stats",
			Params{"search_percent": "%"}, WithPageSize(2))
		if err != nil {
			return err
		}
		chunks := collectChunks(t, st)
		assert.Len(t, chunks, 2)
		return nil
	})
	require.NoError(t, err)

	// One connection, one transaction for the whole scope; commit came
	// from the scope exit, not from the stream.
	require.Len(t, dialer.conns, 1)
	require.Len(t, dialer.conns[0].txs, 1)
	assert.True(t, dialer.conns[0].txs[0].committed)
}

func TestScopedStreamCloseLeavesScopeOpen(t *testing.T) {
	columns, data := statRows(10)
	eng, dialer, err := newTestEngine(streamSources(), cursorHandler(columns, data), testConfig())
	require.NoError(t, err)
	defer eng.Pool().Shutdown(context.Background())

	err = eng.WithScope(context.Background(), func(s *Session) error {
		st, err := s.ReadPartialCSV(context.Background(), "read_stats",
			Params{"search_percent": "%"}, WithPageSize(4))
		if err != nil {
			return err
		}
		if _, err := st.Next(context.Background()); err != nil {
			return err
		}
		if err := st.Close(context.Background()); err != nil {
			return err
		}
		// The scope keeps working after the stream is abandoned.
		_, err = s.ReadRows(context.Background(), "read_stats", Params{"search_percent": "%"})
		return err
	})
	require.NoError(t, err)
	assert.True(t, dialer.lastTx().committed)
}
