package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pyropy/tsload/core/load"
	"github.com/pyropy/tsload/core/partition"
	"github.com/pyropy/tsload/core/split"
	"github.com/urfave/cli/v2"
)

var loadCmd = &cli.Command{
	Name:      "load",
	Usage:     "Split one or more segment files and dispatch them into the cluster",
	ArgsUsage: "SEGMENT_FILE...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "manifest",
			Required: true,
			Usage:    "Path to the cluster manifest listing replica sets and members",
		},
		&cli.Int64Flag{
			Name:  "partition-interval",
			Value: split.DefaultPartitionInterval,
			Usage: "Width of one time-partition slot in milliseconds",
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: split.DefaultWorkers,
			Usage: "Number of segment files read in parallel",
		},
	},
	Action: func(ctx *cli.Context) error {
		files := ctx.Args().Slice()
		if len(files) == 0 {
			return errors.New("no segment files given")
		}

		manifest, err := partition.LoadManifest(ctx.String("manifest"))
		if err != nil {
			return err
		}

		cfg, err := load.GetConfig()
		if err != nil {
			return err
		}

		fetcher := partition.NewBatchFetcher(manifest, partition.DefaultCacheSize)
		coordinator := load.NewCoordinator(cfg, load.NewRPCTransport(), fetcher)
		splitter := split.NewMergedSplitter(files, ctx.Int64("partition-interval"), ctx.Int("workers"))

		cctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// The last input file serves as the load's representative label;
		// pieces from every input carry it.
		result := coordinator.Run(cctx, files[len(files)-1], splitter)
		if result.SplitError != nil {
			log.Errorw("load", "status", "splitting failed", "error", result.SplitError)
		}
		for key, failure := range result.Phase1Failures {
			log.Warnw("load", "status", "piece failed", "file", key.File, "replicaSet", key.ReplicaSetID,
				"seq", key.Seq, "error", failure)
		}
		for id, failure := range result.Phase2Failures {
			log.Warnw("load", "status", "replica set unresolved", "replicaSet", id, "error", failure)
		}

		if !result.Success {
			return fmt.Errorf("load %s finished in state %s", result.TxID, result.State)
		}

		log.Infow("load", "status", "done", "txID", result.TxID, "state", result.State.String())

		return nil
	},
}
