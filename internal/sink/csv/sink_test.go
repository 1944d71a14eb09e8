package csvsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendRoundTripsQuoting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movies.csv")
	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)

	rec := scraper.Record{
		Title:       "Amélie, \"Le Fabuleux\"",
		ReleaseDate: "2001",
		Rating:      "8.3",
		Synopsis:    "She said, \"hello\"\nand left; 東京",
	}
	require.NoError(t, s.Append(context.Background(), rec))
	require.NoError(t, s.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.Row(), rows[0])
}

func TestAppendMinimalQuoting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movies.csv")
	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), scraper.Record{
		Title: "Film A", ReleaseDate: "2024", Rating: "7.5", Synopsis: "A story, told.",
	}))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Film A,2024,7.5,\"A story, told.\"\n", string(raw))
}

func TestAppendConcurrentWritersDoNotInterleave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movies.csv")
	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)

	const writers = 50
	const perWriter = 20
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				rec := scraper.Record{
					Title:       fmt.Sprintf("Film %d-%d", w, i),
					ReleaseDate: "2024",
					Rating:      "7.5",
					Synopsis:    fmt.Sprintf("line one, \"quoted\"\nline two %0512d", i),
				}
				assert.NoError(t, s.Append(context.Background(), rec))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	rows := readRows(t, path)
	require.Len(t, rows, writers*perWriter)
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		require.Len(t, row, 4)
		for _, field := range row {
			require.NotEmpty(t, field)
		}
		seen[row[0]] = struct{}{}
	}
	assert.Len(t, seen, writers*perWriter)
}

func TestOpenAppendsAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "movies.csv")
	rec := scraper.Record{Title: "Film A", ReleaseDate: "2024", Rating: "7.5", Synopsis: "A story."}

	for run := 0; run < 2; run++ {
		s, err := Open(Config{Path: path, Header: true}, nil)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Append(context.Background(), rec))
		}
		require.NoError(t, s.Close())
	}

	rows := readRows(t, path)
	require.Len(t, rows, 1+6)
	assert.Equal(t, scraper.Columns, rows[0])
}

func TestAppendRejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movies.csv")
	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)

	err = s.Append(context.Background(), scraper.Record{Title: "Film A", ReleaseDate: "2024", Rating: "7.5"})
	require.ErrorIs(t, err, scraper.ErrIncompleteRecord)
	require.NoError(t, s.Close())

	assert.Empty(t, readRows(t, path))
}

func TestAppendAfterClose(t *testing.T) {
	t.Parallel()

	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "movies.csv")}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Append(context.Background(), scraper.Record{Title: "a", ReleaseDate: "b", Rating: "c", Synopsis: "d"})
	var ioErr *scraper.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestAppendCanceledContext(t *testing.T) {
	t.Parallel()

	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "movies.csv")}, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Append(ctx, scraper.Record{Title: "a", ReleaseDate: "b", Rating: "c", Synopsis: "d"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	_, err := Open(Config{}, nil)
	require.Error(t, err)

	_, err = Open(Config{Path: t.TempDir()}, nil)
	require.Error(t, err)
}
