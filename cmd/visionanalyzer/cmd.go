package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bdougie/vision/internal/analyzer"
	"github.com/bdougie/vision/internal/config"
	"github.com/bdougie/vision/internal/llm"
	"github.com/bdougie/vision/internal/models"
	"github.com/bdougie/vision/internal/storage"
	"github.com/bdougie/vision/internal/summarizer"
)

// app carries what every subcommand needs once flags and env are resolved
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	envFile  string
	frameDir string
	verbose  bool
	quiet    bool
	stderr   io.Writer
}

func NewCLI() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "visionanalyzer",
		Short: "Caption and summarize videos with vision models",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			return a.setup(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().StringVar(&a.frameDir, "frames-dir", "", "Scratch directory for sampled frames (default $FRAME_DIR or frames)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Hide progress bars")

	rootCmd.AddCommand(
		a.captionCmd(),
		a.analyzeCmd(),
		a.presetsCmd(),
	)
	return rootCmd
}

func (a *app) setup(stderr io.Writer) error {
	a.stderr = stderr

	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.frameDir != "" {
		cfg.FrameDir = a.frameDir
	}

	level := cfg.SlogLevel()
	if a.verbose {
		level = slog.LevelDebug
	}

	a.cfg = cfg
	a.logger = slog.New(
		tint.NewHandler(a.stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) processor() *analyzer.Processor {
	progress := a.stderr
	if a.quiet {
		progress = io.Discard
	}
	store := storage.NewFrameStore(a.cfg.FrameDir)
	return analyzer.NewProcessor(store, a.logger, analyzer.WithProgressOutput(progress))
}

// summaryGenerator builds the text generator selected by SUMMARY_BACKEND
func (a *app) summaryGenerator(ctx context.Context) (summarizer.TextGenerator, error) {
	switch a.cfg.SummaryBackend {
	case "ollama":
		client, err := llm.NewAgentClient(ctx, a.cfg.AgentBaseURL, a.cfg.AgentPort, a.cfg.SummaryOllamaModel, a.logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := llm.NewTogetherClient(a.cfg.TogetherAPIKey, a.cfg.TogetherBaseURL, a.logger)
		if err != nil {
			return nil, err
		}
		return client.Generator(a.cfg.SummaryModel, a.cfg.SummaryMaxTokens, a.cfg.SummaryTemperature), nil
	}
}

func (a *app) captionCmd() *cobra.Command {
	var (
		interval  int
		batchSize int
		maxFrames int
		model     string
	)

	cmd := &cobra.Command{
		Use:   "caption VIDEO",
		Short: "Caption frames with a local model and summarize the captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if interval == 0 {
				interval = a.cfg.CaptionInterval
			}
			if batchSize == 0 {
				batchSize = a.cfg.CaptionBatchSize
			}
			if model == "" {
				model = a.cfg.CaptionModel
			}

			client, err := llm.NewCaptionClient("", model, a.cfg.CaptionMaxTokens, a.logger)
			if err != nil {
				return err
			}
			if err := client.Ping(ctx); err != nil {
				return err
			}

			gen, err := a.summaryGenerator(ctx)
			if err != nil {
				return err
			}

			result, err := a.processor().CaptionVideo(ctx, args[0], analyzer.CaptionOptions{
				Interval:  interval,
				BatchSize: batchSize,
				MaxFrames: maxFrames,
			}, analyzer.NewCaptioner(client, a.logger), summarizer.NewConcise(gen))
			if err != nil {
				return err
			}

			printCaptionResult(out, result)
			return nil
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 0, "Keep every Nth frame (default $CAPTION_INTERVAL or 30)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Frames per caption batch (default $CAPTION_BATCH_SIZE or 4)")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Cap on captioned frames, 0 for none")
	cmd.Flags().StringVar(&model, "model", "", "Ollama caption model (default $CAPTION_MODEL or llava)")
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	var (
		presetName   string
		analysisName string
		reportPath   string
		modelChain   []string
		printReport  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze VIDEO",
		Short: "Analyze frames with a remote vision model and write a JSON report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			preset, err := config.ParsePreset(presetName)
			if err != nil {
				return err
			}
			analysisType, err := config.ParseAnalysisType(analysisName)
			if err != nil {
				return err
			}
			if len(modelChain) == 0 {
				modelChain = a.cfg.VisionModels
			}

			client, err := llm.NewTogetherClient(a.cfg.TogetherAPIKey, a.cfg.TogetherBaseURL, a.logger)
			if err != nil {
				return err
			}
			gen, err := a.summaryGenerator(ctx)
			if err != nil {
				return err
			}

			params := preset.Params()
			vision := analyzer.NewVisionAnalyzer(client, analyzer.VisionOptions{
				Models:      modelChain,
				Prompt:      analysisType.Prompt(),
				MaxTokens:   params.MaxTokens,
				Temperature: a.cfg.VisionTemperature,
				BatchSize:   params.BatchSize,
				PaceDelay:   a.cfg.VisionPaceDelay,
				MinResults:  a.cfg.VisionMinResults,
			}, a.logger)

			a.logger.Info("starting analysis", "preset", preset, "analysis_type", analysisType, "models", len(modelChain))
			outcome, err := a.processor().AnalyzeVideo(ctx, args[0], analyzer.AnalyzeOptions{
				Preset:       preset,
				AnalysisType: analysisType,
				ReportPath:   reportPath,
			}, vision, summarizer.NewStructured(gen, a.logger))
			if err != nil {
				return err
			}

			return printOutcome(out, outcome, reportPath, printReport)
		},
	}

	cmd.Flags().StringVarP(&presetName, "preset", "p", string(config.PresetStandard), "Preset: detailed, standard or fast")
	cmd.Flags().StringVarP(&analysisName, "analysis-type", "t", string(config.ActionDetection), "Analysis type: action_detection, detailed_analysis or scene_understanding")
	cmd.Flags().StringVarP(&reportPath, "report", "o", "video_analysis_report.json", "Report file")
	cmd.Flags().StringSliceVar(&modelChain, "models", nil, "Vision model fallback chain (default $VISION_MODELS)")
	cmd.Flags().BoolVar(&printReport, "print", false, "Print the per-frame timeline from the written report")
	return cmd
}

func (a *app) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List analysis presets and analysis types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var data [][]string
			for _, p := range config.Presets() {
				params := p.Params()
				data = append(data, []string{
					p.String(),
					strconv.Itoa(params.Interval),
					strconv.Itoa(params.BatchSize),
					strconv.Itoa(params.MaxTokens),
					strconv.Itoa(params.MaxFrames),
				})
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"PRESET", "INTERVAL", "BATCH", "MAX TOKENS", "MAX FRAMES"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()

			types := make([]string, 0, len(config.AnalysisTypes()))
			for _, t := range config.AnalysisTypes() {
				types = append(types, t.String())
			}
			fmt.Fprintf(out, "\nAnalysis types: %s\n", strings.Join(types, ", "))
			return nil
		},
	}
}

func printCaptionResult(w io.Writer, result *analyzer.CaptionResult) {
	fmt.Fprintf(w, "%d frames extracted.\n", result.Frames)
	if len(result.Captions) == 0 {
		fmt.Fprintln(w, "No frames were captioned.")
		return
	}
	fmt.Fprintf(w, "\nFinal Video Description:\n%s\n", result.Summary)
}

// printOutcome reports an analysis run. With timeline set the per-frame
// analyses are printed too, read back from the report file when one was written.
func printOutcome(w io.Writer, outcome *models.Outcome, reportPath string, timeline bool) error {
	if outcome.Failed() {
		fmt.Fprintln(w, outcome.Failure)
		return nil
	}

	report := outcome.Report
	fmt.Fprintf(w, "Analyzed %d frames with %s\n\n%s\n", report.TotalFramesAnalyzed, report.Model, report.Summary)
	if reportPath != "" {
		fmt.Fprintf(w, "\nReport saved to %s\n", reportPath)
	}

	if !timeline {
		return nil
	}
	if reportPath != "" {
		written, err := storage.ReadReport(reportPath)
		if err != nil {
			return err
		}
		report = written
	}
	fmt.Fprintf(w, "\n%s\n", analyzer.FormatTimeline(report.FrameAnalyses))
	return nil
}
