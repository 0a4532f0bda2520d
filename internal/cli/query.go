package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/stratamem/stratamem/internal/auth"
	"github.com/stratamem/stratamem/internal/config"
	"github.com/stratamem/stratamem/internal/logging"
	"github.com/stratamem/stratamem/internal/model"
	"github.com/stratamem/stratamem/internal/store"
)

var (
	querySystem string
	queryFrom   string
	queryTo     string
	queryToken  string
)

// readPermission is the role a token needs to query the warm tier.
const readPermission = "memory.read"

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query warm-tier records by system or date range",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&querySystem, "system", "", "Return records for this system ID")
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "Range start, RFC3339 (inclusive)")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "Range end, RFC3339 (inclusive)")
	queryCmd.Flags().StringVar(&queryToken, "token", "", "Bearer token, required when auth tokens are configured")
}

// authorize checks the caller's token against the configured registry.
// An empty registry leaves the command open.
func authorize(cfg *config.Config, token string) error {
	if len(cfg.Auth.Tokens) == 0 {
		return nil
	}
	verifier := auth.NewStaticVerifier()
	for t, claims := range cfg.Auth.Tokens {
		verifier.Register(t, auth.Claims{
			Sub:   claims.Sub,
			Email: claims.Email,
			Roles: claims.Roles,
		})
	}
	claims, err := verifier.VerifyToken(token)
	if err != nil {
		return err
	}
	return verifier.CheckPermission(claims, readPermission)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level)

	if err := authorize(cfg, queryToken); err != nil {
		return err
	}

	ctx := context.Background()
	warm := store.NewWarmStore(cfg.Database.Path)
	if err := warm.Initialize(ctx); err != nil {
		return err
	}
	defer warm.Close()

	var recs []*model.MemoryRecord
	switch {
	case querySystem != "":
		recs, err = warm.QueryBySystem(ctx, querySystem)
	case queryFrom != "" && queryTo != "":
		var start, end time.Time
		if start, err = time.Parse(time.RFC3339, queryFrom); err != nil {
			return goerr.Wrap(err, "invalid --from timestamp")
		}
		if end, err = time.Parse(time.RFC3339, queryTo); err != nil {
			return goerr.Wrap(err, "invalid --to timestamp")
		}
		recs, err = warm.QueryByDateRange(ctx, start, end)
	default:
		return goerr.New("either --system or both --from and --to are required")
	}
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		cmd.Println("no records")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
			rec.Timestamp.Format(time.RFC3339),
			color.CyanString("%s/%s", rec.SystemID, rec.ConversationID),
			rec.Summary,
		)
	}
	cmd.Printf("%d record(s)\n", len(recs))
	return nil
}
