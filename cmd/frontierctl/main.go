/*
Command frontierctl is a small operational CLI around the frontier core,
in the same shape as the teacher's walker CLI: a cobra root command with
serve/stats subcommands and a --config flag for the YAML config file.

	frontierctl serve --seeds seeds.txt
	frontierctl stats

Fetching real pages over HTTP is out of scope for the core (and for this
CLI): serve treats each request's URL as a local file path and reads its
body from disk, which is enough to smoke-test the scheduler end to end
without a network stack.
*/
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/backend"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

func openBackend() *backend.Backend {
	if configPath != "" {
		if err := frontier.LoadConfigFile(configPath); err != nil {
			fatalf("failed to load config %v: %v", configPath, err)
		}
	}
	b, err := backend.Open(frontier.Config)
	if err != nil {
		fatalf("failed to open backend: %v", err)
	}
	return b
}

var seedsFile string
var maxNextRequests int

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "run a seed -> crawl -> reschedule loop against local files",
	Run: func(cmd *cobra.Command, args []string) {
		b := openBackend()

		if seedsFile != "" {
			seeds, err := readSeeds(seedsFile)
			if err != nil {
				fatalf("failed to read seeds file %v: %v", seedsFile, err)
			}
			if err := b.AddSeeds(seeds); err != nil {
				fatalf("failed to add seeds: %v", err)
			}
		}

		n := maxNextRequests
		if n <= 0 {
			n = frontier.Config.MaxNextRequests
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-stop:
					return
				default:
				}

				reqs, err := b.GetNextRequests(n)
				if err != nil {
					logrus.WithError(err).Error("GetNextRequests failed")
					return
				}
				if len(reqs) == 0 {
					return
				}

				for _, r := range reqs {
					body, err := os.ReadFile(r.URL)
					if err != nil {
						logrus.WithField("url", r.URL).WithError(err).Warn("could not read body, treating as error")
						if err := b.RequestError(r, frontier.ErrorOther); err != nil {
							logrus.WithError(err).Error("RequestError failed")
						}
						continue
					}
					resp := frontier.Response{Request: r, Body: body}
					if err := b.PageCrawled(resp, nil); err != nil {
						logrus.WithError(err).Error("PageCrawled failed")
					}
				}
			}
		}()

		select {
		case <-stop:
		case <-done:
		}

		if err := b.Stop(); err != nil {
			fatalf("failed to stop backend cleanly: %v", err)
		}
	},
}

func readSeeds(path string) ([]frontier.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reqs []frontier.Request
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		reqs = append(reqs, frontier.Request{
			Fingerprint: frontier.PageID(line),
			URL:         line,
		})
	}
	return reqs, sc.Err()
}

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "print OpicHits scores for every known page",
	Run: func(cmd *cobra.Command, args []string) {
		b := openBackend()
		defer b.Stop()

		fmt.Printf("%-40s %10s %10s\n", "page", "h_rel", "a_rel")
		if err := b.Engine().IterScores(func(p frontier.PageID, hRel, aRel float64) bool {
			fmt.Printf("%-40s %10.6f %10.6f\n", p.String(), hRel, aRel)
			return true
		}); err != nil {
			fatalf("failed to iterate scores: %v", err)
		}
		fmt.Printf("h_mean=%.6f a_mean=%.6f\n", b.Engine().HMean(), b.Engine().AMean())
	},
}

func main() {
	root := &cobra.Command{Use: "frontierctl"}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a frontier config file")

	serveCommand.Flags().StringVarP(&seedsFile, "seeds", "s", "", "file of newline-separated seed URLs (also used as local file paths to read bodies from)")
	serveCommand.Flags().IntVarP(&maxNextRequests, "max-next-requests", "n", 0, "override max_next_requests for this run")
	root.AddCommand(serveCommand)
	root.AddCommand(statsCommand)

	if err := root.Execute(); err != nil {
		fatalf("%v", err)
	}
}
