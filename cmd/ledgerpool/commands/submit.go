package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/pool"
)

var (
	opType    string
	opKey     string
	opData    string
	write     bool
	multiSign bool
	minSeq    uint64
	nodes     []string
)

// NewSubmitCmd produces the command that sends one request to the pool.
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Send a request to the pool and print the agreed result",
		PreRunE: loadConfig,
		RunE:    submit,
	}
	AddPoolFlags(cmd)
	cmd.Flags().StringVar(&opType, "op", "GET", "Operation type")
	cmd.Flags().StringVar(&opKey, "key", "", "Operation key")
	cmd.Flags().StringVar(&opData, "data", "", "Operation data, as JSON")
	cmd.Flags().BoolVar(&write, "write", false, "Write request: replies need no state proof")
	cmd.Flags().BoolVar(&multiSign, "multi-sign", false, "Sign in the signatures map rather than the single signature")
	cmd.Flags().Uint64Var(&minSeq, "min-seq", 0, "Reject replies read from an older ledger")
	cmd.Flags().StringSliceVar(&nodes, "nodes", nil, "Send to these nodes only and print every reply")
	return cmd
}

type submitResult struct {
	Kind     string      `json:"kind"`
	Value    interface{} `json:"value"`
	Agreeing int         `json:"agreeing"`
	Queried  int         `json:"queried"`
	Total    int         `json:"total"`
	Metadata interface{} `json:"metadata"`
}

type actionResult struct {
	Result   json.RawMessage `json:"result,omitempty"`
	Verified bool            `json:"verified"`
	Error    string          `json:"error,omitempty"`
}

func submit(cmd *cobra.Command, args []string) error {
	p, err := openPool()
	if err != nil {
		return err
	}
	defer p.Close()

	class := net.ReadRequest
	if write {
		class = net.WriteRequest
	}

	op := net.Operation{Type: strings.ToUpper(opType), Key: opKey}
	if opData != "" {
		if !json.Valid([]byte(opData)) {
			return fmt.Errorf("--data is not valid JSON")
		}
		op.Data = []byte(opData)
	}

	req, err := p.NewRequest(op, class)
	if err != nil {
		return err
	}
	req.MinSeq = minSeq

	if multiSign {
		if p.Identity() == nil {
			return fmt.Errorf("--multi-sign needs a private key in %s", _config.Pool.Keyfile())
		}
		if err := p.Identity().MultiSignRequest(req); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), _config.Timeout)
	defer cancel()

	if len(nodes) > 0 {
		return submitAction(ctx, p, req)
	}

	res, err := p.Submit(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(submitResult{
		Kind:     string(res.Value.Kind),
		Value:    json.RawMessage(quoteReject(res.Value.Canonical(), res.Rejected())),
		Agreeing: res.Agreeing,
		Queried:  res.Queried,
		Total:    res.Total,
		Metadata: res.Metadata(),
	})
}

func submitAction(ctx context.Context, p *pool.Pool, req *net.Request) error {
	replies, err := p.SubmitAction(ctx, req, nodes, _config.Pool.DispatchTimeout)
	if err != nil {
		return err
	}

	out := make(map[string]actionResult, len(replies))
	for alias, r := range replies {
		ar := actionResult{Verified: r.Verified != nil}
		if r.Raw != nil && r.Raw.Body.Result != nil {
			ar.Result = json.RawMessage(r.Raw.Body.Result)
		}
		if r.Err != nil {
			ar.Error = r.Err.Error()
		}
		out[alias] = ar
	}

	return printJSON(out)
}

// quoteReject turns a rejection reason into a JSON string.
func quoteReject(raw []byte, rejected bool) []byte {
	if !rejected {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

// NewCacheCmd produces the result cache commands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read through and manage the result cache",
	}

	getCmd := &cobra.Command{
		Use:     "get [key]",
		Short:   "Read a key, from the cache when fresh enough",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE:    cacheGet,
	}
	AddPoolFlags(getCmd)
	getCmd.Flags().BoolVar(&getOpts.NoCache, "no-cache", false, "Skip the cache")
	getCmd.Flags().BoolVar(&getOpts.NoUpdate, "no-update", false, "Only use the cache")
	getCmd.Flags().BoolVar(&getOpts.NoStore, "no-store", false, "Do not cache the result")
	getCmd.Flags().DurationVar(&getOpts.MinFresh, "min-fresh", 0, "Max age of a cached result, 0 for any")

	purgeCmd := &cobra.Command{
		Use:     "purge",
		Short:   "Delete cached results",
		PreRunE: loadConfig,
		RunE:    cachePurge,
	}
	AddPoolFlags(purgeCmd)
	purgeCmd.Flags().DurationVar(&purgeOpts.MaxAge, "max-age", 0, "Only delete results older than this, 0 for all")

	cmd.AddCommand(getCmd, purgeCmd)

	return cmd
}

var (
	getOpts   pool.GetCacheOptions
	purgeOpts pool.PurgeOptions
)

func cacheGet(cmd *cobra.Command, args []string) error {
	p, err := openPool()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), _config.Timeout)
	defer cancel()

	res, err := p.Get(ctx, net.Operation{Type: "GET", Key: args[0]}, getOpts)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"kind":      string(res.Value.Kind),
		"value":     json.RawMessage(quoteReject(res.Value.Canonical(), res.Value.Reason != "")),
		"metadata":  res.Metadata,
		"stored_at": res.StoredAt,
		"cached":    res.Cached,
	})
}

func cachePurge(cmd *cobra.Command, args []string) error {
	p, err := openPool()
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.PurgeCache(purgeOpts)
	if err != nil {
		return err
	}

	fmt.Printf("Purged %d cached results\n", n)
	return nil
}
