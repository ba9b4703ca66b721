package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/najoast/runtimeapi/core"
	"github.com/najoast/runtimeapi/logging"
	"github.com/najoast/runtimeapi/primitives"
	"github.com/najoast/runtimeapi/provider/snapshot"
	"github.com/najoast/runtimeapi/runtimeapi"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var queryFlags struct {
	block      string
	para       uint32
	assumption string
	snapshot   string
	timeout    time.Duration
}

var queryCmd = &cobra.Command{
	Use:   "query <kind>",
	Short: "Answer one runtime API request from the snapshot",
	Long: `Start the subsystem in process against the state snapshot, send one
request, print the reply as JSON and conclude.

Kinds: ` + strings.Join(queryKinds(), ", ") + `

Examples:
  runtimeapi query validators --block 0x01...
  runtimeapi query persisted_validation_data --block 0x01... --para 100 --assumption timed_out`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		path := queryFlags.snapshot
		if path == "" {
			path = cfg.Provider.SnapshotPath
		}
		if path == "" {
			return fmt.Errorf("no snapshot configured: set provider.snapshot_path or --snapshot")
		}

		block, err := primitives.ParseHash(queryFlags.block)
		if err != nil {
			return fmt.Errorf("invalid --block: %w", err)
		}
		assumption, err := primitives.ParseOccupiedCoreAssumption(queryFlags.assumption)
		if err != nil {
			return fmt.Errorf("invalid --assumption: %w", err)
		}

		q, err := buildQuery(args[0], primitives.ParaID(queryFlags.para), assumption)
		if err != nil {
			return err
		}

		provider, err := snapshot.Load(path)
		if err != nil {
			return err
		}

		// Logs go to stderr so stdout carries only the reply.
		logCfg := cfg.Log
		if logCfg.Output == "" || strings.EqualFold(logCfg.Output, "stdout") {
			logCfg.Output = "stderr"
		}
		logger, err := logging.New(logCfg, cfg.App.Name)
		if err != nil {
			return err
		}
		defer logger.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), queryFlags.timeout)
		defer cancel()

		reply, err := runQuery(ctx, provider, block, q, logger.Logger.With().Str("command", "query").Logger())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), reply)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryFlags.block, "block", "b", "", "relay parent block hash (0x-prefixed hex)")
	queryCmd.Flags().Uint32VarP(&queryFlags.para, "para", "p", 0, "para id for para-specific queries")
	queryCmd.Flags().StringVarP(&queryFlags.assumption, "assumption", "a", "included",
		"occupied core assumption (included, timed_out, free)")
	queryCmd.Flags().StringVar(&queryFlags.snapshot, "snapshot", "", "snapshot file, overriding provider.snapshot_path")
	queryCmd.Flags().DurationVar(&queryFlags.timeout, "timeout", 10*time.Second, "time to wait for the reply")
	_ = queryCmd.MarkFlagRequired("block")

	rootCmd.AddCommand(queryCmd)
}

// errNoReply is returned when the reply channel was never written.
var errNoReply = errors.New("no reply received")

// query is a request paired with a way to wait for its reply.
type query struct {
	request runtimeapi.Request
	await   func(ctx context.Context) (any, error)
}

// buildQuery builds the request named by kind. para and assumption are
// ignored by kinds that do not take them.
func buildQuery(kind string, para primitives.ParaID, assumption primitives.OccupiedCoreAssumption) (query, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case runtimeapi.Validators{}.Kind():
		tx, rx := runtimeapi.NewReply[[]primitives.ValidatorID]()
		return query{runtimeapi.Validators{Reply: tx}, awaitReply(rx)}, nil
	case runtimeapi.ValidatorGroups{}.Kind():
		tx, rx := runtimeapi.NewReply[primitives.ValidatorGroups]()
		return query{runtimeapi.ValidatorGroups{Reply: tx}, awaitReply(rx)}, nil
	case runtimeapi.AvailabilityCores{}.Kind():
		tx, rx := runtimeapi.NewReply[[]primitives.CoreState]()
		return query{runtimeapi.AvailabilityCores{Reply: tx}, awaitReply(rx)}, nil
	case runtimeapi.PersistedValidationData{}.Kind():
		tx, rx := runtimeapi.NewReply[*primitives.PersistedValidationData]()
		req := runtimeapi.PersistedValidationData{Para: para, Assumption: assumption, Reply: tx}
		return query{req, awaitReply(rx)}, nil
	case runtimeapi.FullValidationData{}.Kind():
		tx, rx := runtimeapi.NewReply[*primitives.ValidationData]()
		req := runtimeapi.FullValidationData{Para: para, Assumption: assumption, Reply: tx}
		return query{req, awaitReply(rx)}, nil
	case runtimeapi.SessionIndexForChild{}.Kind():
		tx, rx := runtimeapi.NewReply[primitives.SessionIndex]()
		return query{runtimeapi.SessionIndexForChild{Reply: tx}, awaitReply(rx)}, nil
	case runtimeapi.ValidationCode{}.Kind():
		tx, rx := runtimeapi.NewReply[*primitives.ValidationCode]()
		req := runtimeapi.ValidationCode{Para: para, Assumption: assumption, Reply: tx}
		return query{req, awaitReply(rx)}, nil
	case runtimeapi.CandidatePendingAvailability{}.Kind():
		tx, rx := runtimeapi.NewReply[*primitives.CommittedCandidateReceipt]()
		return query{runtimeapi.CandidatePendingAvailability{Para: para, Reply: tx}, awaitReply(rx)}, nil
	case runtimeapi.CandidateEvents{}.Kind():
		tx, rx := runtimeapi.NewReply[[]primitives.CandidateEvent]()
		return query{runtimeapi.CandidateEvents{Reply: tx}, awaitReply(rx)}, nil
	default:
		return query{}, fmt.Errorf("unknown query kind %q (want one of %s)", kind, strings.Join(queryKinds(), ", "))
	}
}

func queryKinds() []string {
	kinds := []string{
		runtimeapi.Validators{}.Kind(),
		runtimeapi.ValidatorGroups{}.Kind(),
		runtimeapi.AvailabilityCores{}.Kind(),
		runtimeapi.PersistedValidationData{}.Kind(),
		runtimeapi.FullValidationData{}.Kind(),
		runtimeapi.SessionIndexForChild{}.Kind(),
		runtimeapi.ValidationCode{}.Kind(),
		runtimeapi.CandidatePendingAvailability{}.Kind(),
		runtimeapi.CandidateEvents{}.Kind(),
	}
	sort.Strings(kinds)
	return kinds
}

func awaitReply[T any](rx <-chan runtimeapi.Result[T]) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		select {
		case res, ok := <-rx:
			if !ok {
				return nil, errNoReply
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Value, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", errNoReply, ctx.Err())
		}
	}
}

// runQuery runs the subsystem loop for a single request and concludes it.
func runQuery(ctx context.Context, provider runtimeapi.Provider, block primitives.Hash, q query,
	logger zerolog.Logger) (any, error) {
	subsystem, err := runtimeapi.New(provider, runtimeapi.NoopMetrics(), runtimeapi.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	mailbox := core.NewMailbox[runtimeapi.Message](core.MailboxOptions{Size: 2, Name: runtimeapi.Name})
	defer mailbox.Close()

	sp := subsystem.Start(ctx, mailbox)

	if err := mailbox.Send(ctx, core.MessageEnvelope(runtimeapi.NewMessage(block, q.request))); err != nil {
		return nil, err
	}
	reply, replyErr := q.await(ctx)

	if err := mailbox.Send(ctx, core.SignalEnvelope[runtimeapi.Message](core.Conclude{})); err != nil {
		return nil, err
	}
	if err := sp.Wait(ctx); err != nil {
		return nil, err
	}

	if replyErr != nil {
		return nil, fmt.Errorf("%s at %s: %w", q.request.Kind(), block.Short(), replyErr)
	}
	return reply, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
