package tools

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/richard-senior/leaguesim/pkg/report"
	"github.com/richard-senior/leaguesim/pkg/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type RunHistoryArgs struct {
	League string `json:"league,omitempty" jsonschema:"Only list runs for this league name"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 20)"`
	RunID  string `json:"run_id,omitempty" jsonschema:"Return the stored position probabilities of one run instead of the list"`
}

func RunHistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "run_history",
		Description: "Lists previously saved forecasts, newest first, or returns the finishing position probabilities of one saved run.",
	}
}

type runEntry struct {
	ID         string  `json:"id"`
	League     string  `json:"league"`
	SeasonID   int     `json:"season_id"`
	Started    string  `json:"started"`
	Completed  int64   `json:"completed"`
	Elapsed    string  `json:"elapsed"`
	ErrorPP    float64 `json:"error_pp"`
	StopReason string  `json:"stop_reason"`
	Rho        float64 `json:"rho"`
}

type runDetail struct {
	runEntry
	Probabilities map[string][]float64 `json:"probabilities"`
	TopTables     []tableEntry         `json:"top_tables,omitempty"`
}

type tableEntry struct {
	Table []string `json:"table"`
	Share float64  `json:"share"`
}

func entry(r *store.Run) runEntry {
	return runEntry{
		ID:         r.ID,
		League:     r.League,
		SeasonID:   r.SeasonID,
		Started:    r.Started().Format("2006-01-02 15:04:05"),
		Completed:  r.Completed,
		Elapsed:    report.FormatDuration(r.Elapsed()),
		ErrorPP:    r.ErrorPP,
		StopReason: r.StopReason,
		Rho:        r.Rho,
	}
}

func HandleRunHistory(ctx context.Context, req *mcp.CallToolRequest, args RunHistoryArgs) (*mcp.CallToolResult, any, error) {
	var out any
	if args.RunID != "" {
		stored, err := store.LoadRun(args.RunID)
		if err != nil {
			return toolError(err), nil, nil
		}
		detail := runDetail{runEntry: entry(stored.Run), Probabilities: map[string][]float64{}}
		for _, team := range stored.Frequencies.Teams {
			detail.Probabilities[team] = stored.Frequencies.Distribution(team)
		}
		for _, t := range stored.Tables {
			share := 0.0
			if stored.Run.Completed > 0 {
				share = float64(t.Count) / float64(stored.Run.Completed)
			}
			detail.TopTables = append(detail.TopTables, tableEntry{Table: t.Table, Share: share})
		}
		out = detail
	} else {
		runs, err := store.ListRuns(args.League, args.Limit)
		if err != nil {
			return toolError(err), nil, nil
		}
		entries := make([]runEntry, 0, len(runs))
		for _, r := range runs {
			entries = append(entries, entry(r))
		}
		out = entries
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolText(string(data)), nil, nil
}
