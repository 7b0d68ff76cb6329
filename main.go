package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/chunks"
	"github.com/astei/anvil2snbt/convert"
	"github.com/astei/anvil2snbt/internal/config"
	"github.com/astei/anvil2snbt/internal/logging"
	"github.com/astei/anvil2snbt/internal/metrics"
	"github.com/astei/anvil2snbt/roundtrip"
)

// env is what every command needs, built once from the global flags.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder *metrics.Recorder
	svc      *convert.Service
}

func main() {
	app := &cli.App{
		Name:  "anvil2snbt",
		Usage: "convert Minecraft NBT and Anvil region files to and from SNBT",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file", EnvVars: []string{config.EnvConfig}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.IntFlag{Name: "workers", Usage: "parallel chunk workers (0 = one per CPU)"},
			&cli.StringFlag{Name: "metrics-textfile", Usage: "write Prometheus metrics to this file on exit"},
		},
		Commands: []*cli.Command{
			{
				Name:      "to-snbt",
				Usage:     "convert an .nbt/.dat/.mca file to SNBT",
				ArgsUsage: "<input> [output]",
				Action:    withEnv(toSnbt),
			},
			{
				Name:      "from-snbt",
				Usage:     "convert an SNBT file back to binary",
				ArgsUsage: "<input.snbt> [output]",
				Action:    withEnv(fromSnbt),
			},
			{
				Name:      "info",
				Usage:     "summarise an NBT or region file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print JSON"}},
				Action:    withEnv(info),
			},
			{
				Name:      "list",
				Usage:     "list the chunks of a region",
				ArgsUsage: "<region.mca>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print JSON"}},
				Action:    withEnv(list),
			},
			{
				Name:      "extract",
				Usage:     "print one chunk as SNBT",
				ArgsUsage: "<region.mca> <x> <z>",
				Action:    withEnv(extract),
			},
			{
				Name:      "split",
				Usage:     "write every chunk of a region to a chunk folder",
				ArgsUsage: "<region.mca> [folder]",
				Action:    withEnv(split),
			},
			{
				Name:      "merge",
				Usage:     "rebuild a region from a chunk folder",
				ArgsUsage: "<folder> <region.mca>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "remove-source", Usage: "delete the folder after a clean merge"}},
				Action:    withEnv(merge),
			},
			{
				Name:      "verify",
				Usage:     "check that a file survives a conversion round trip",
				ArgsUsage: "<file>",
				Action:    withEnv(verify),
			},
			{
				Name:      "scan",
				Usage:     "summarise every region file in a directory",
				ArgsUsage: "<region-dir>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print JSON"}},
				Action:    withEnv(scan),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "anvil2snbt:", err)
		os.Exit(1)
	}
}

// withEnv loads configuration, applies the global flags and runs action with
// a context cancelled by SIGINT. Metrics are written after the action.
func withEnv(action func(*cli.Context, *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		if v := c.String("log-level"); v != "" {
			cfg.Log.Level = v
		}
		if v := c.String("log-format"); v != "" {
			cfg.Log.Format = v
		}
		if c.IsSet("workers") {
			cfg.Workers = c.Int("workers")
		}
		if v := c.String("metrics-textfile"); v != "" {
			cfg.Metrics.Textfile = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		recorder := metrics.New()
		svc, err := convert.New(cfg, convert.WithLogger(logger), convert.WithRecorder(recorder))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		c.Context = ctx

		runErr := action(c, &env{cfg: cfg, logger: logger, recorder: recorder, svc: svc})
		if cfg.Metrics.Textfile != "" {
			if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Error("could not write metrics", "file", cfg.Metrics.Textfile, "err", err)
			}
		}
		return runErr
	}
}

func arg(c *cli.Context, i int, name string) (string, error) {
	if c.NArg() <= i {
		return "", fmt.Errorf("%s: missing %s", c.Command.Name, name)
	}
	return c.Args().Get(i), nil
}

// progressBar logs batch progress at most once per second.
func progressBar(logger *slog.Logger, what string) chunks.ProgressFunc {
	var last time.Time
	return func(done, total int) {
		if done != total && time.Since(last) < time.Second {
			return
		}
		last = time.Now()
		logger.Info(what, "done", done, "total", total)
	}
}

func reportFailures(logger *slog.Logger, failures []chunks.Failure) {
	for _, f := range failures {
		logger.Warn("chunk failed", "chunk", f.Coord.String(), "file", f.File, "err", f.Err)
	}
}

func toSnbt(c *cli.Context, e *env) error {
	in, err := arg(c, 0, "input")
	if err != nil {
		return err
	}
	out := c.Args().Get(1)
	if out == "" {
		out = in + ".snbt"
	}
	res, err := e.svc.ConvertToSnbt(c.Context, in, out, progressBar(e.logger, "converting"))
	if err != nil {
		return err
	}
	reportFailures(e.logger, res.Failures)
	switch res.Mode {
	case convert.ModeChunks:
		fmt.Printf("%s -> %s (%d chunks in %s)\n", in, res.Output, res.Chunks, res.Folder)
	case convert.ModeRegion:
		fmt.Printf("%s -> %s (%d chunks)\n", in, res.Output, res.Chunks)
	default:
		fmt.Printf("%s -> %s\n", in, res.Output)
	}
	return failuresError(res.Failures)
}

func fromSnbt(c *cli.Context, e *env) error {
	in, err := arg(c, 0, "input")
	if err != nil {
		return err
	}
	out := c.Args().Get(1)
	if out == "" {
		out = strings.TrimSuffix(in, ".snbt")
		if out == in {
			return errors.New("from-snbt: output path required for input without .snbt suffix")
		}
	}
	start := time.Now()
	res, err := e.svc.ConvertFromSnbt(c.Context, in, out, progressBar(e.logger, "converting"))
	if err != nil {
		return err
	}
	reportFailures(e.logger, res.Failures)
	e.recorder.OperationDone("from-snbt", time.Since(start))
	if res.Mode == convert.ModeFile {
		fmt.Printf("%s -> %s\n", in, res.Output)
	} else {
		fmt.Printf("%s -> %s (%d chunks)\n", in, res.Output, res.Chunks)
	}
	return failuresError(res.Failures)
}

func failuresError(failures []chunks.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d chunks failed", len(failures))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func info(c *cli.Context, e *env) error {
	path, err := arg(c, 0, "file")
	if err != nil {
		return err
	}
	if convert.IsRegionPath(path) {
		ri, err := e.svc.GetRegionInfo(path)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(ri)
		}
		fmt.Printf("region %d %d  %s\n", ri.RegionX, ri.RegionZ, humanize.Bytes(uint64(ri.FileSize)))
		fmt.Printf("chunks: %d present, %d valid, %d slots\n", ri.PresentChunks, ri.ValidChunks, ri.TotalChunks)
		fmt.Printf("modified %s\n", humanize.Time(ri.LastModified))
		return nil
	}
	ni, err := e.svc.GetNbtFileInfo(path)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(ni)
	}
	fmt.Printf("%s  %s, %s\n", ni.Path, humanize.Bytes(uint64(ni.FileSize)), ni.Compression)
	fmt.Printf("root %q with %d keys, %s tags\n", ni.RootName, len(ni.RootKeys), humanize.Comma(int64(ni.TagCount)))
	if ni.DataVersion != 0 {
		fmt.Printf("data version %d\n", ni.DataVersion)
	}
	fmt.Printf("modified %s\n", humanize.Time(ni.LastModified))
	return nil
}

func list(c *cli.Context, e *env) error {
	path, err := arg(c, 0, "region")
	if err != nil {
		return err
	}
	descs, err := e.svc.ListChunksInRegion(path)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(descs)
	}
	for _, d := range descs {
		state := "ok"
		if !d.IsValid {
			state = fmt.Sprintf("invalid: %v", d.Err)
		}
		fmt.Printf("%5d %5d  local %2d %2d  %-12s %8s  %s\n",
			d.ChunkX, d.ChunkZ, d.LocalX, d.LocalZ, d.CompressionType,
			humanize.Bytes(uint64(d.DataSize)), state)
	}
	return nil
}

func extract(c *cli.Context, e *env) error {
	path, err := arg(c, 0, "region")
	if err != nil {
		return err
	}
	var xz [2]int
	for i, name := range []string{"x", "z"} {
		v, err := arg(c, i+1, name)
		if err != nil {
			return err
		}
		if _, err := fmt.Sscanf(v, "%d", &xz[i]); err != nil {
			return fmt.Errorf("extract: bad %s %q", name, v)
		}
	}
	text, err := e.svc.ExtractChunkData(path, xz[0], xz[1])
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func split(c *cli.Context, e *env) error {
	path, err := arg(c, 0, "region")
	if err != nil {
		return err
	}
	folder := c.Args().Get(1)
	if folder == "" {
		folder = chunks.FolderFor(path)
	}
	res, err := e.svc.ConvertMcaToChunkFiles(c.Context, path, folder, progressBar(e.logger, "splitting"))
	if err != nil {
		return err
	}
	reportFailures(e.logger, res.Failures)
	fmt.Printf("%s -> %s (%d chunks)\n", path, res.Folder, len(res.Manifest.Chunks))
	return failuresError(res.Failures)
}

func merge(c *cli.Context, e *env) error {
	folder, err := arg(c, 0, "folder")
	if err != nil {
		return err
	}
	out, err := arg(c, 1, "region")
	if err != nil {
		return err
	}
	res, err := e.svc.MergeChunkFolder(c.Context, folder, out, c.Bool("remove-source"), progressBar(e.logger, "merging"))
	if err != nil {
		return err
	}
	reportFailures(e.logger, res.Failures)
	fmt.Printf("%s -> %s (%d chunks, %d external, %s)\n", folder, res.Region, res.Stats.Chunks,
		res.Stats.ExternalChunks, humanize.Bytes(uint64(res.Stats.Sectors)*anvil.SectorSize))
	return failuresError(res.Failures)
}

func verify(c *cli.Context, e *env) error {
	path, err := arg(c, 0, "file")
	if err != nil {
		return err
	}
	start := time.Now()
	report, err := roundtrip.Verify(c.Context, path, roundtrip.Options{
		Workers: e.cfg.Workers,
		Logger:  e.logger,
		Indent:  e.cfg.SNBT.Indent,
	})
	if err != nil {
		return err
	}
	e.recorder.OperationDone("verify", time.Since(start))
	if report.Mode == roundtrip.ModeRegion {
		fmt.Printf("compared %d chunks, skipped %d unreadable\n", report.ChunksCompared, report.ChunksSkipped)
	}
	if !report.Match {
		return fmt.Errorf("round trip mismatch at %s", report.FirstMismatch)
	}
	fmt.Println("round trip ok")
	return nil
}

func scan(c *cli.Context, e *env) error {
	root, err := arg(c, 0, "region directory")
	if err != nil {
		return err
	}
	start := time.Now()
	scans, err := ScanWorld(c.Context, root, e.cfg.Workers, e.logger)
	if err != nil {
		return err
	}
	e.recorder.OperationDone("scan", time.Since(start))
	if c.Bool("json") {
		return printJSON(scans)
	}
	for _, s := range scans {
		fmt.Println(s)
	}
	regions, present, valid := worldTotals(scans)
	fmt.Printf("Discovered %s chunks (%s valid) in %d regions\n", humanize.Comma(int64(present)), humanize.Comma(int64(valid)), regions)
	return nil
}
