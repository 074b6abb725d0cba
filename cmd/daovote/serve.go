package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/tocipoco/DAO-Vote/api/client"
	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/dao"
	"github.com/tocipoco/DAO-Vote/dashboard"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/service"
	"github.com/tocipoco/DAO-Vote/session"
	"github.com/tocipoco/DAO-Vote/web3"
)

const (
	flagHost         = "api.host"
	flagPort         = "api.port"
	flagWeb3ChainID  = "web3.chainid"
	flagWeb3RPC      = "web3.rpc"
	flagWeb3Contract = "web3.contract"
	flagWeb3Start    = "web3.startblock"
	flagWeb3Gateway  = "web3.gateway"
	flagPollInterval = "poll"
	flagTimeout      = "timeout"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "runs the co-processor gateway, the DAO ledger and the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, err := cmd.Flags().GetDuration(flagPollInterval)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			timeout, err := cmd.Flags().GetDuration(flagTimeout)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, interval, timeout)
		},
	}
	cmd.Flags().String(flagHost, "0.0.0.0", "API listen host")
	cmd.Flags().Int(flagPort, 9090, "API listen port")
	cmd.Flags().Uint64(flagWeb3ChainID, 0, "chain id of the EVM deployment")
	cmd.Flags().StringSlice(flagWeb3RPC, nil, "web3 RPC endpoints of the EVM deployment")
	cmd.Flags().String(flagWeb3Contract, "", "DAO contract address of the EVM deployment")
	cmd.Flags().Uint64(flagWeb3Start, 0, "first block scanned for contract events")
	cmd.Flags().String(flagWeb3Gateway, "", "URL of the co-processor gateway of the EVM deployment")
	cmd.Flags().Duration(flagPollInterval, 2*time.Second, "contract event poll interval")
	cmd.Flags().Duration(flagTimeout, session.DefaultTimeout, "decryption and vote request timeout")
	return cmd
}

func serve(ctx context.Context, cfg *Config, interval, timeout time.Duration) error {
	stg, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stg.Close()

	cp, err := coprocessor.New(stg, coprocessor.Config{
		ChainID:      cfg.Chain.ID,
		MaxPlaintext: cfg.Chain.MaxPlaintext,
	})
	if err != nil {
		return fmt.Errorf("cannot start co-processor: %w", err)
	}
	engine, err := dao.New(stg, cp, dao.Config{Address: common.HexToAddress(cfg.Chain.Contract)})
	if err != nil {
		return fmt.Errorf("cannot load DAO state: %w", err)
	}
	networks := chain.Networks{cfg.Chain.ID: chain.NewLocal(engine, cfg.Chain.ID)}
	gateways := map[uint64]coprocessor.Gateway{cfg.Chain.ID: cp}

	if len(cfg.Web3.RPC) > 0 {
		networks[cfg.Web3.ChainID] = &web3.Dialer{
			Address:    common.HexToAddress(cfg.Web3.Contract),
			Endpoints:  cfg.Web3.RPC,
			StartBlock: cfg.Web3.StartBlock,
		}
		if cfg.Web3.Gateway != "" {
			cli, err := client.New(cfg.Web3.Gateway)
			if err != nil {
				return fmt.Errorf("cannot reach co-processor gateway: %w", err)
			}
			gateways[cfg.Web3.ChainID] = client.NewGateway(cli)
		}
		log.Infow("web3 network configured", "chainId", cfg.Web3.ChainID,
			"contract", cfg.Web3.Contract, "endpoints", len(cfg.Web3.RPC))
	}

	signer, err := cfg.wallet()
	if err != nil {
		return err
	}
	ctrl, err := dashboard.New(ctx, dashboard.Config{
		Dialer:     networks,
		Gateways:   gateways,
		ChainID:    cfg.Chain.ID,
		Signer:     signer,
		Signatures: stg,
		Session:    session.Config{Timeout: timeout},
	})
	if err != nil {
		return fmt.Errorf("cannot start dashboard: %w", err)
	}
	log.Infow("dashboard session started", "account", signer.AddressString(), "chainId", cfg.Chain.ID)

	apiSrv := service.NewAPI(cp, ctrl, cfg.API.Host, cfg.API.Port)
	if err := apiSrv.Start(ctx); err != nil {
		return err
	}
	defer apiSrv.Stop()

	monitor := service.NewEventMonitor(ctrl, ctrl, interval)
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer monitor.Stop()

	<-ctx.Done()
	log.Infow("shutting down")
	return nil
}
