package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"clmmgate/internal/config"
	"clmmgate/internal/gateway"
	"clmmgate/internal/journal/postgres"
	"clmmgate/internal/model"
)

func main() {
	root := &cobra.Command{
		Use:          "gateway",
		Short:        "CLMM position gateway",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("network", "", "network name from configuration")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN for the close journal (optional)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	infoCmd := &cobra.Command{
		Use:   "info <position-id>",
		Short: "Show a position with its uncollected fees",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	root.AddCommand(infoCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List open positions held by a wallet",
		RunE:  runList,
	}
	listCmd.Flags().String("owner", "", "wallet address (default wallet when empty)")
	root.AddCommand(listCmd)

	closeCmd := &cobra.Command{
		Use:   "close <position-id>",
		Short: "Fully withdraw, collect and burn a position",
		Args:  cobra.ExactArgs(1),
		RunE:  runClose,
	}
	closeCmd.Flags().String("owner", "", "wallet address (default wallet when empty)")
	root.AddCommand(closeCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled closes for a wallet",
		RunE:  runHistory,
	}
	historyCmd.Flags().String("owner", "", "wallet address (default wallet when empty)")
	historyCmd.Flags().String("position", "", "show only the latest close of this position")
	historyCmd.Flags().Int("limit", 20, "maximum rows to return")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and the gateway.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *gateway.Gateway, string, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, "", err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, "", err
	}

	networkName, _ := cmd.Flags().GetString("network")
	if networkName == "" {
		return nil, nil, nil, "", fmt.Errorf("--network is required")
	}
	if _, err := cfg.Network(networkName); err != nil {
		return nil, nil, nil, "", err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var opts []gateway.Option
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			stop()
			return nil, nil, nil, "", fmt.Errorf("connect journal: %w", err)
		}
		opts = append(opts, gateway.WithJournal(store))
	}

	gw, err := gateway.New(ctx, cfg, logger, opts...)
	if err != nil {
		stop()
		return nil, nil, nil, "", err
	}
	return ctx, stop, gw, networkName, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, stop, gw, networkName, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer gw.Close()

	info, err := gw.PositionInfo(ctx, networkName, args[0])
	if err != nil {
		return err
	}
	return printJSON(renderInfo(info))
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, stop, gw, networkName, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer gw.Close()

	owner, _ := cmd.Flags().GetString("owner")
	infos, err := gw.ListPositions(ctx, networkName, owner)
	if err != nil {
		return err
	}

	out := make([]infoOut, 0, len(infos))
	for i := range infos {
		out = append(out, renderInfo(&infos[i]))
	}
	return printJSON(out)
}

func runClose(cmd *cobra.Command, args []string) error {
	ctx, stop, gw, networkName, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer gw.Close()

	owner, _ := cmd.Flags().GetString("owner")
	result, err := gw.ClosePosition(ctx, networkName, owner, args[0])
	if err != nil {
		return err
	}
	return printJSON(renderClose(result))
}

// runHistory reads the close journal directly; it needs no chain access.
func runHistory(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	networkName, _ := cmd.Flags().GetString("network")
	if networkName == "" {
		return fmt.Errorf("--network is required")
	}
	netCfg, err := cfg.Network(networkName)
	if err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("close history needs the journal: set --pg-dsn")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect journal: %w", err)
	}
	defer store.Close()

	if positionID, _ := cmd.Flags().GetString("position"); positionID != "" {
		rec, ok, err := store.LastClose(ctx, networkName, positionID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no journaled close for position %s", positionID)
		}
		return printJSON(renderRecord(rec))
	}

	owner, _ := cmd.Flags().GetString("owner")
	if owner == "" {
		owner = netCfg.DefaultWallet
	}
	if owner == "" {
		return fmt.Errorf("--owner is required and no default wallet is configured")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.RecentCloses(ctx, networkName, owner, limit)
	if err != nil {
		return err
	}
	out := make([]historyOut, 0, len(records))
	for i := range records {
		out = append(out, renderRecord(&records[i]))
	}
	return printJSON(out)
}

type tokenOut struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type infoOut struct {
	ID           string   `json:"id"`
	Pool         string   `json:"pool"`
	FeeTier      uint32   `json:"feeTier"`
	TickLower    int32    `json:"tickLower"`
	TickUpper    int32    `json:"tickUpper"`
	Liquidity    string   `json:"liquidity"`
	Base         tokenOut `json:"base"`
	Quote        tokenOut `json:"quote"`
	BaseFee      string   `json:"baseFee"`
	QuoteFee     string   `json:"quoteFee"`
	FeesDegraded bool     `json:"feesDegraded,omitempty"`
}

type closeOut struct {
	Network      string `json:"network"`
	Signature    string `json:"signature"`
	Status       string `json:"status"`
	Fee          string `json:"fee"`
	RentRefunded string `json:"rentRefunded"`
	BaseRemoved  string `json:"baseRemoved"`
	QuoteRemoved string `json:"quoteRemoved"`
	BaseFee      string `json:"baseFeeCollected"`
	QuoteFee     string `json:"quoteFeeCollected"`
}

type historyOut struct {
	Network    string `json:"network"`
	PositionID string `json:"positionId"`
	Owner      string `json:"owner"`
	Signature  string `json:"signature"`
	Status     string `json:"status"`
	Fee        string `json:"fee"`
	RecordedAt string `json:"recordedAt"`
}

func renderRecord(rec *postgres.CloseRecord) historyOut {
	return historyOut{
		Network:    rec.Network,
		PositionID: rec.PositionID,
		Owner:      rec.Owner,
		Signature:  rec.Signature,
		Status:     string(rec.Status),
		Fee:        amount(rec.Fee),
		RecordedAt: rec.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func renderInfo(info *model.PositionInfo) infoOut {
	return infoOut{
		ID:           info.Position.ID,
		Pool:         info.Position.PoolAddress,
		FeeTier:      info.Position.FeeTier,
		TickLower:    info.Position.TickLower,
		TickUpper:    info.Position.TickUpper,
		Liquidity:    amount(info.Position.Liquidity),
		Base:         token(info.Base),
		Quote:        token(info.Quote),
		BaseFee:      amount(info.BaseFee),
		QuoteFee:     amount(info.QuoteFee),
		FeesDegraded: info.Fees.Degraded,
	}
}

func renderClose(res *model.CloseResult) closeOut {
	return closeOut{
		Network:      res.Network,
		Signature:    res.Signature,
		Status:       string(res.Status),
		Fee:          amount(res.Fee),
		RentRefunded: amount(res.PositionRentRefunded),
		BaseRemoved:  amount(res.BaseTokenAmountRemoved),
		QuoteRemoved: amount(res.QuoteTokenAmountRemoved),
		BaseFee:      amount(res.BaseFeeAmountCollected),
		QuoteFee:     amount(res.QuoteFeeAmountCollected),
	}
}

func token(ref model.TokenRef) tokenOut {
	return tokenOut{Address: ref.Address, Symbol: ref.Symbol, Decimals: ref.Decimals}
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
