package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteermatch/internal/app"
	"volunteermatch/internal/config"
	"volunteermatch/internal/domain"
	"volunteermatch/internal/repo"
)

var setupOnce sync.Once

func run(t *testing.T, args ...string) error {
	t.Helper()
	setupOnce.Do(func() {
		cobra.OnInitialize(initConfig)
		addPersistentFlags()
		registerCommands()
	})
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

const candidatesYAML = `
- id: s1
  name: Ruth
  role: retiree
  settlement: Haifa
  interests: [Tutoring]
- id: s2
  name: Moshe
  role: retiree
  settlement: Eilat
- id: c1
  name: Coordinator
  role: admin
  settlement: Haifa
`

func TestLoadCandidates(t *testing.T) {
	cs, err := loadCandidates(strings.NewReader(candidatesYAML))
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, "Haifa", cs[0].Settlement)
	assert.Equal(t, []string{"Tutoring"}, cs[0].Interests)

	cs, err = loadCandidates(strings.NewReader(`[{"id": "s9", "name": "Ada", "role": "retiree"}]`))
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "s9", cs[0].ID)

	cs, err = loadCandidates(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, cs)

	_, err = loadCandidates(strings.NewReader("id: not-a-list"))
	assert.Error(t, err)
}

func TestJobRows(t *testing.T) {
	rows := jobRows([]domain.JobRequest{{
		ID:           "j1",
		Title:        "Reading",
		Status:       domain.StatusActive,
		MatchResults: []domain.MatchResult{{CandidateID: "s1"}, {CandidateID: "s2"}},
		AssignedSeniors: []domain.Assignment{
			{CandidateID: "s1", Status: domain.AssignmentInvited},
			{CandidateID: "s2", Status: domain.AssignmentDeclined},
		},
	}})
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0][5])
	assert.Equal(t, 1, rows[0][6])
}

func TestSetEnvValueKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OTHER=1\n"), 0o644))
	require.NoError(t, setEnvValue(path, "VOLMATCH_JWT_SECRET", "s3cret"))
	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "1", env["OTHER"])
	assert.Equal(t, "s3cret", env["VOLMATCH_JWT_SECRET"])

	fresh := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, setEnvValue(fresh, "K", "v"))
	env, err = godotenv.Read(fresh)
	require.NoError(t, err)
	assert.Equal(t, "v", env["K"])
}

func TestCommandsAgainstWorkspace(t *testing.T) {
	ws := t.TempDir()
	file := filepath.Join(ws, "candidates.yml")
	require.NoError(t, os.WriteFile(file, []byte(candidatesYAML), 0o644))

	require.NoError(t, run(t, "-w", ws, "config", "init"))
	_, err := os.Stat(config.Path(ws))
	require.NoError(t, err)
	assert.Error(t, run(t, "-w", ws, "config", "init"))
	require.NoError(t, run(t, "-w", ws, "config", "validate"))

	require.NoError(t, run(t, "-w", ws, "candidate", "import", file))
	require.NoError(t, run(t, "-w", ws, "job", "create", "--title", "Homework club", "--location", "Haifa", "--field", "Tutoring"))

	a, err := app.Open(context.Background(), app.Options{Workspace: ws})
	require.NoError(t, err)
	defer a.Close()
	jobs, err := a.Engine.ListJobRequests(context.Background(), repo.JobRequestFilters{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Len(t, jobs[0].MatchResults, 1)
	assert.Equal(t, "s1", jobs[0].MatchResults[0].CandidateID)
	assert.Equal(t, 65, jobs[0].MatchResults[0].Score)

	id := jobs[0].ID
	require.NoError(t, run(t, "-w", ws, "job", "invite", id, "s1"))
	require.NoError(t, run(t, "-w", ws, "job", "respond", id, "s1", "Accepted"))
	j, err := a.Engine.GetJobRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, j.Status)

	require.NoError(t, run(t, "-w", ws, "job", "inspect", id, "s2"))
	assert.Error(t, run(t, "-w", ws, "job", "get", "missing"))
}
