package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/richard-senior/leaguesim/pkg/datasource"
)

type ListLeaguesArgs struct {
	Filter string `json:"filter,omitempty" jsonschema:"Only list leagues whose name contains this text"`
}

func ListLeaguesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_leagues",
		Description: "Lists the leagues that can be forecast by name, with their SofaScore tournament ids.",
	}
}

func HandleListLeagues(ctx context.Context, req *mcp.CallToolRequest, args ListLeaguesArgs) (*mcp.CallToolResult, any, error) {
	filter := strings.ToLower(strings.TrimSpace(args.Filter))
	var b strings.Builder
	for _, l := range datasource.Leagues() {
		if filter != "" && !strings.Contains(strings.ToLower(l.Name), filter) {
			continue
		}
		fmt.Fprintf(&b, "%d\t%s\n", l.ID, l.Name)
	}
	if b.Len() == 0 {
		return toolText(fmt.Sprintf("no league matches %q", args.Filter)), nil, nil
	}
	return toolText(b.String()), nil, nil
}
