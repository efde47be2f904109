package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"ckbrelay/internal/builder"
	"ckbrelay/internal/calldata"
	"ckbrelay/internal/ckb"
	"ckbrelay/internal/domain"
	"ckbrelay/internal/infrastructure/ckbrpc"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "calldata",
		Usage:     "encode and decode relay contract calls offline",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:      "header",
				Usage:     "light-client update for one or more saved blocks",
				ArgsUsage: "<block.json>...",
				Action: func(c *cli.Context) error {
					blocks, err := readBlocks(c.Args().Slice())
					if err != nil {
						return err
					}
					headers := make([]domain.Header, 0, len(blocks))
					for _, block := range blocks {
						headers = append(headers, builder.HeaderFromView(block.Header, block.Extension))
					}
					return printCall(c.App.Writer, calldata.NewHeaderUpdateCall(headers))
				},
			},
			{
				Name:      "cells",
				Usage:     "image-cell update for one or more saved blocks",
				ArgsUsage: "<block.json>...",
				Action: func(c *cli.Context) error {
					blocks, err := readBlocks(c.Args().Slice())
					if err != nil {
						return err
					}
					updates := make([]calldata.CellBlockUpdate, 0, len(blocks))
					for _, block := range blocks {
						update, err := builder.CellBlockUpdateFromBlock(block)
						if err != nil {
							return err
						}
						updates = append(updates, update)
					}
					return printCall(c.App.Writer, calldata.NewCellUpdateCall(updates))
				},
			},
			{
				Name:      "rollback-headers",
				Usage:     "light-client rollback of the given block hashes, in order",
				ArgsUsage: "<hash>...",
				Action: func(c *cli.Context) error {
					hashes := make([]common.Hash, 0, c.NArg())
					for _, raw := range c.Args().Slice() {
						b, err := hexutil.Decode(raw)
						if err != nil || len(b) != common.HashLength {
							return fmt.Errorf("invalid block hash %q", raw)
						}
						hashes = append(hashes, common.BytesToHash(b))
					}
					return printCall(c.App.Writer, calldata.NewHeaderRollbackCall(hashes))
				},
			},
			{
				Name:      "set-state",
				Usage:     "light-client setState",
				ArgsUsage: "<true|false>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one argument")
					}
					allow, err := strconv.ParseBool(c.Args().First())
					if err != nil {
						return err
					}
					return printCall(c.App.Writer, calldata.NewSetStateCall(allow))
				},
			},
			{
				Name:  "related-info",
				Usage: "metadata setCkbRelatedInfo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "metadata-type-id", Required: true},
					&cli.StringFlag{Name: "checkpoint-type-id", Required: true},
					&cli.StringFlag{Name: "xudt-args", Required: true},
					&cli.StringFlag{Name: "stake-smt-type-id", Required: true},
					&cli.StringFlag{Name: "delegate-smt-type-id", Required: true},
					&cli.StringFlag{Name: "reward-smt-type-id", Required: true},
				},
				Action: func(c *cli.Context) error {
					ids := make(map[string]common.Hash, 6)
					for _, name := range []string{"metadata-type-id", "checkpoint-type-id", "xudt-args", "stake-smt-type-id", "delegate-smt-type-id", "reward-smt-type-id"} {
						b, err := hexutil.Decode(c.String(name))
						if err != nil || len(b) != common.HashLength {
							return fmt.Errorf("--%s must be 32 hex bytes", name)
						}
						ids[name] = common.BytesToHash(b)
					}
					info := builder.NewCkbRelatedInfo(builder.CkbRelatedInfoParams{
						MetadataTypeID:    ids["metadata-type-id"],
						CheckpointTypeID:  ids["checkpoint-type-id"],
						XudtArgs:          ids["xudt-args"],
						StakeSmtTypeID:    ids["stake-smt-type-id"],
						DelegateSmtTypeID: ids["delegate-smt-type-id"],
						RewardSmtTypeID:   ids["reward-smt-type-id"],
					})
					return printCall(c.App.Writer, calldata.NewSetCkbRelatedInfoCall(info))
				},
			},
			{
				Name:      "decode",
				Usage:     "decode a payload produced for a contract",
				ArgsUsage: "<contract> <hex>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("expected <contract> <hex>")
					}
					data, err := hexutil.Decode(c.Args().Get(1))
					if err != nil {
						return err
					}
					call, err := calldata.Decode(calldata.Contract(c.Args().Get(0)), data)
					if err != nil {
						return err
					}
					out, err := json.MarshalIndent(map[string]any{
						"contract": call.Contract(),
						"method":   call.Method(),
						"items":    call.Len(),
						"call":     call,
					}, "", "  ")
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, string(out))
					return err
				},
			},
			{
				Name:  "selectors",
				Usage: "list the method selectors of every contract",
				Action: func(c *cli.Context) error {
					for _, contract := range calldata.Contracts() {
						schema, err := calldata.Schema(contract)
						if err != nil {
							return err
						}
						names := make([]string, 0, len(schema.Methods))
						for name := range schema.Methods {
							names = append(names, name)
						}
						sort.Strings(names)
						for _, name := range names {
							method := schema.Methods[name]
							fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", contract, hexutil.Encode(method.ID), method.Sig)
						}
					}
					return nil
				},
			},
		},
	}
}

func readBlocks(paths []string) ([]ckb.Block, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one block file is required")
	}
	blocks := make([]ckb.Block, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		block, err := ckbrpc.ParseBlockJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func printCall(w io.Writer, call calldata.Call) error {
	data, err := calldata.Encode(call)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hexutil.Encode(data))
	return err
}
