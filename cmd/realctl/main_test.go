package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/realsocial/real/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := app()
	a.Writer = &out
	a.ErrWriter = &out
	a.ExitErrHandler = func(*cli.Context, error) {}
	err := a.Run(append([]string{"realctl"}, args...))
	return out.String(), err
}

func writeBatch(t *testing.T, batch events.DynamoDBEvent) string {
	t.Helper()
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReplay_LocalSeedsNewImages(t *testing.T) {
	keys := map[string]events.DynamoDBAttributeValue{
		store.PartitionKey: events.NewStringAttribute("misc/one"),
		store.SortKey:      events.NewStringAttribute("-"),
	}
	path := writeBatch(t, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:   "e1",
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			Keys:           keys,
			NewImage:       keys,
			SequenceNumber: "1",
		},
	}}})

	out, err := run(t, "replay", "--local", path)
	require.NoError(t, err)
	assert.Contains(t, out, "records=1 rows=1")
}

func TestReplay_RequiresBatchFile(t *testing.T) {
	_, err := run(t, "replay", "--local")
	require.Error(t, err)

	_, err = run(t, "replay", "--local", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDeflate_RejectsUnknownKind(t *testing.T) {
	_, err := run(t, "deflate", "--kind", "album")
	require.ErrorContains(t, err, `unknown trending kind "album"`)
}
