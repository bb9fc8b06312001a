package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/cutlist/internal/metrics"
	"github.com/forPelevin/cutlist/internal/pipeline"
	"github.com/forPelevin/cutlist/internal/server"
	"github.com/forPelevin/cutlist/internal/types"
	"github.com/forPelevin/cutlist/internal/usecase"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <input>",
		Short: "Print media metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			p, err := a.uc.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func addCutFlag(cmd *cobra.Command) {
	cmd.Flags().StringArray("cut", nil, "Range to remove as start-end (seconds, mm:ss or hh:mm:ss); repeatable or comma separated")
}

func cutsFromFlags(cmd *cobra.Command) ([]types.Cut, error) {
	raw, _ := cmd.Flags().GetStringArray("cut")
	return parseCuts(raw)
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <input>",
		Short: "Show what an export would keep and remove, without encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cuts, err := cutsFromFlags(cmd)
			if err != nil {
				return err
			}
			a, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			plan, planErr := a.uc.Plan(cmd.Context(), args[0], cuts)
			if planErr != nil && !errors.Is(planErr, types.ErrAllContentCut) {
				return planErr
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				if err := printJSON(cmd.OutOrStdout(), plan); err != nil {
					return err
				}
				return planErr
			}
			printPlan(cmd.OutOrStdout(), args[0], plan)
			return planErr
		},
	}
	addCutFlag(cmd)
	cmd.Flags().Bool("json", false, "Print the plan as JSON")
	return cmd
}

func printPlan(w io.Writer, input string, plan usecase.PlanResult) {
	fmt.Fprintf(w, "Input: %s\n", input)
	fmt.Fprintf(w, "Source duration: %s\n", formatSeconds(plan.Probe.Duration))
	if plan.Probe.AudioOnly() {
		fmt.Fprintln(w, "Media: audio only")
	} else {
		fmt.Fprintf(w, "Media: %dx%d @ %.3f fps, %s/%s\n", plan.Probe.Width, plan.Probe.Height, plan.Probe.FPS, plan.Probe.VideoCodec, plan.Probe.AudioCodec)
	}
	if plan.Copy {
		fmt.Fprintln(w, "No effective cuts: the source would be copied unchanged.")
		return
	}

	fmt.Fprintf(w, "Ranges to remove: %d\n", len(plan.Cuts))
	for i, c := range plan.Cuts {
		fmt.Fprintf(w, "  Cut[%d]: %s -> %s (%s)\n", i+1, formatSeconds(c.Start), formatSeconds(c.End), formatSeconds(c.End-c.Start))
	}
	fmt.Fprintf(w, "Segments to keep: %d\n", len(plan.Kept))
	for i, s := range plan.Kept {
		fmt.Fprintf(w, "  Keep[%d]: %s -> %s (%s)\n", i+1, formatSeconds(s.Start), formatSeconds(s.End), formatSeconds(s.Duration()))
	}
	fmt.Fprintf(w, "Removed: %s, remaining: %s\n", formatSeconds(plan.Removed), formatSeconds(plan.Remaining))
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <input>",
		Short: "Write the input minus the given ranges, replacing the output atomically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cuts, err := cutsFromFlags(cmd)
			if err != nil {
				return err
			}
			a, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = pipeline.DefaultOutputPath("", args[0], "cut", time.Now())
			}
			res, err := a.uc.Export(cmd.Context(), usecase.ExportInput{Source: args[0], Destination: out, Cuts: cuts})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addCutFlag(cmd)
	cmd.Flags().StringP("out", "o", "", "Output path (default: next to the input)")
	return cmd
}

func addClipFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("clip", nil, "Clip as path#start-end[@offset]; repeatable, in playback order")
	cmd.Flags().Int("width", 0, "Maximum output width (0 uses the configured preview width)")
}

func clipsFromFlags(cmd *cobra.Command) ([]types.TimelineClip, error) {
	raw, _ := cmd.Flags().GetStringArray("clip")
	return parseClips(raw)
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Stream a fragmented MP4 preview of clips to stdout or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clips, err := clipsFromFlags(cmd)
			if err != nil {
				return err
			}
			a, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			width, _ := cmd.Flags().GetInt("width")
			timeline, _ := cmd.Flags().GetBool("timeline")

			var stream *usecase.Stream
			if timeline {
				stream, err = a.uc.StreamTimeline(cmd.Context(), clips, width)
			} else {
				stream, err = a.uc.StreamSegments(cmd.Context(), clips, width)
			}
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					stream.Detach()
					_ = stream.Wait()
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := stream.WriteTo(w)
			if err != nil {
				return err
			}
			if stream.State() == usecase.StateCancelled {
				return cmd.Context().Err()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "preview %s: %d bytes\n", stream.ID, n)
			return nil
		},
	}
	addClipFlags(cmd)
	cmd.Flags().Bool("timeline", false, "Encode all clips in one process, ordered by offset")
	cmd.Flags().StringP("out", "o", "-", "Output file, - for stdout")
	return cmd
}

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Render clips from several sources into one file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clips, err := clipsFromFlags(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return errors.New("--out is required")
			}
			a, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			width, _ := cmd.Flags().GetInt("width")
			res, err := a.uc.Compose(cmd.Context(), usecase.ComposeInput{Clips: clips, Destination: out, Width: width})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addClipFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "Output path")
	return cmd
}

func newProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy <input>",
		Short: "Render a small preview copy of the input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = pipeline.DefaultOutputPath("", args[0], "proxy", time.Now())
			}
			width, _ := cmd.Flags().GetInt("width")
			res, err := a.uc.Proxy(cmd.Context(), args[0], out, width)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output path (default: next to the input)")
	cmd.Flags().Int("width", 0, "Maximum width (0 uses the configured preview width)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve probe, plan, export and preview over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := metrics.New()
			a, err := setup(cmd, m)
			if err != nil {
				return err
			}
			bind := a.cfg.Server.Bind
			if v, _ := cmd.Flags().GetString("bind"); v != "" {
				bind = v
			}
			root := a.cfg.Server.Root
			if v, _ := cmd.Flags().GetString("root"); v != "" {
				root = v
			}
			outDir, _ := cmd.Flags().GetString("out-dir")

			srv := server.New(a.uc, a.log, m, server.Options{
				Root:            root,
				OutDir:          outDir,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			})
			return srv.ListenAndServe(cmd.Context(), bind)
		},
	}
	cmd.Flags().String("bind", "", "Listen address (default from config, :8080)")
	cmd.Flags().String("root", "", "Confine request paths to this directory")
	cmd.Flags().String("out-dir", "", "Directory for exports that name no destination")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
