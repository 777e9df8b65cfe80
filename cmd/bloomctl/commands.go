package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/spf13/cobra"

	"github.com/membership/bloom"
)

var (
	// Global flags
	filterPath string
	verbose    bool

	// create flags
	capacity uint64
	fpRate   float64
	numBits  uint64
	numHash  uint32

	// redis flags
	redisAddr   string
	redisPrefix string
	redisTTL    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "bloomctl",
	Short: "bloomctl manages Bloom filter image files",
	Long: `bloomctl creates and queries Bloom filters stored as binary image files.

Keys are taken from the command arguments, or read one per line from
standard input when the only argument is "-".`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty filter",
	Long: `Create an empty filter sized either for --capacity keys at --fp-rate,
or with explicit --bits and --hashes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			f   *bloom.Filter
			err error
		)
		if cmd.Flags().Changed("bits") {
			f, err = bloom.New(numBits, numHash)
		} else {
			f, err = bloom.NewWithEstimates(capacity, fpRate)
		}
		if err != nil {
			return err
		}
		log.Printf("created filter m=%d k=%d (%d bytes)", f.Cap(), f.K(), f.SizeBytes())
		return f.SaveToFile(filterPath)
	},
}

var addCmd = &cobra.Command{
	Use:   "add [key...]",
	Short: "Add keys to the filter",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newOnly, _ := cmd.Flags().GetBool("new")
		return update(args, func(f *bloom.Filter, keys []string) error {
			if !newOnly {
				f.AddStrings(keys)
				log.Printf("added %d keys", len(keys))
				return nil
			}
			for _, key := range keys {
				if f.AddNewString(key) {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
			}
			return nil
		})
	},
}

var testCmd = &cobra.Command{
	Use:   "test [key...]",
	Short: "Report whether each key may be in the filter",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Test updates the query counter, so the image is written back.
		return update(args, func(f *bloom.Filter, keys []string) error {
			for _, key := range keys {
				answer := "no"
				if f.TestString(key) {
					answer = "maybe"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, answer)
			}
			return nil
		})
	},
}

var filterNewCmd = &cobra.Command{
	Use:   "filter-new [key...]",
	Short: "Print the keys that are definitely not in the filter",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return update(args, func(f *bloom.Filter, keys []string) error {
			for _, i := range f.FilterNewStrings(keys) {
				fmt.Fprintln(cmd.OutOrStdout(), keys[i])
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print filter statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := bloom.LoadFromFile(filterPath)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(f.Stats())
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset every bit and counter of the filter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := bloom.LoadFromFile(filterPath)
		if err != nil {
			return err
		}
		f.ClearAll()
		return f.SaveToFile(filterPath)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push [name]",
	Short: "Store the filter image in Redis",
	Long: `Store the filter image in Redis under name, or under a new random
name when none is given. The name is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := bloom.LoadFromFile(filterPath)
		if err != nil {
			return err
		}
		store, closeStore := redisStore()
		defer closeStore()

		ctx := cmd.Context()
		name := ""
		if len(args) == 1 {
			name = args[0]
			err = store.Save(ctx, name, f)
		} else {
			name, err = store.SaveNew(ctx, f)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Fetch a filter image from Redis into the filter file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore := redisStore()
		defer closeStore()

		f, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		log.Printf("pulled %s: m=%d k=%d insertions=%d", args[0], f.Cap(), f.K(), f.Insertions())
		return f.SaveToFile(filterPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&filterPath, "file", "f", "filter.bloom", "Filter image file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	createCmd.Flags().Uint64VarP(&capacity, "capacity", "n", 1000, "Expected number of keys")
	createCmd.Flags().Float64VarP(&fpRate, "fp-rate", "p", 0.01, "Target false positive rate")
	createCmd.Flags().Uint64VarP(&numBits, "bits", "m", 0, "Explicit bit count (overrides --capacity/--fp-rate)")
	createCmd.Flags().Uint32VarP(&numHash, "hashes", "k", 1, "Explicit hash count, used with --bits")

	addCmd.Flags().Bool("new", false, "Print only the keys that set at least one new bit")

	for _, cmd := range []*cobra.Command{pushCmd, pullCmd} {
		cmd.Flags().StringVar(&redisAddr, "redis", "localhost:6379", "Redis address")
		cmd.Flags().StringVar(&redisPrefix, "prefix", "bloom:", "Redis key prefix")
	}
	pushCmd.Flags().DurationVar(&redisTTL, "ttl", 0, "Expiration of the stored image (0 keeps it forever)")

	rootCmd.AddCommand(createCmd, addCmd, testCmd, filterNewCmd, statsCmd, clearCmd, pushCmd, pullCmd)
}

// update loads the filter, applies fn to the keys and saves the result.
func update(args []string, fn func(f *bloom.Filter, keys []string) error) error {
	keys, err := readKeys(args, os.Stdin)
	if err != nil {
		return err
	}
	f, err := bloom.LoadFromFile(filterPath)
	if err != nil {
		return err
	}
	if err := fn(f, keys); err != nil {
		return err
	}
	return f.SaveToFile(filterPath)
}

func readKeys(args []string, stdin io.Reader) ([]string, error) {
	if len(args) != 1 || args[0] != "-" {
		return args, nil
	}
	var keys []string
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		keys = append(keys, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}
	return keys, nil
}

func redisStore() (*bloom.RedisStore, func()) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})
	store := bloom.NewRedisStore(client,
		bloom.WithKeyPrefix(redisPrefix),
		bloom.WithExpiration(redisTTL),
	)
	return store, func() {
		if err := client.Close(); err != nil {
			log.Printf("Warning: failed to close redis client: %v", err)
		}
	}
}
