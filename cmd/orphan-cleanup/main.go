package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	dedupScanPattern = "applied:*"
	deltaKeyPrefix   = "delta:"
	scanCount        = 100
)

// removeOrphanScript deletes a dedup entry only while its ledger is still
// missing, so a re-apply racing the sweep never loses its marker.
var removeOrphanScript = goredis.NewScript(`
local target = redis.call("GET", KEYS[1])
if not target then
  return 0
end
if redis.call("EXISTS", ARGV[1] .. target) == 1 then
  return 0
end
return redis.call("DEL", KEYS[1])
`)

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		dryRun   = flag.Bool("dry-run", false, "Dry run mode (don't write to Redis)")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	// Connect to Redis
	opts, err := goredis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	// Run cleanup
	if err := cleanupOrphanedDedup(ctx, rdb, *dryRun); err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	slog.Info("Cleanup complete")
}

// cleanupOrphanedDedup removes dedup entries whose target ledger was
// purged. Purging a target drops its ledger hash but leaves the dedup
// strings of its submissions behind; they are void (a replay re-applies
// anyway) and only cost memory.
func cleanupOrphanedDedup(ctx context.Context, rdb *goredis.Client, dryRun bool) error {
	start := time.Now()
	var cursor uint64
	var scanned, removed, kept int

	slog.Info("Starting orphan sweep", "dry_run", dryRun)

	for {
		// Scan for dedup keys
		keys, nextCursor, err := rdb.Scan(ctx, cursor, dedupScanPattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		for _, key := range keys {
			scanned++

			if dryRun {
				target, err := rdb.Get(ctx, key).Result()
				if err == goredis.Nil {
					slog.Debug("Dedup entry vanished mid-scan", "key", key)
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", key, err)
				}

				exists, err := rdb.Exists(ctx, deltaKeyPrefix+target).Result()
				if err != nil {
					return fmt.Errorf("failed to check ledger for %s: %w", key, err)
				}
				if exists == 1 {
					kept++
					continue
				}

				slog.Debug("Would remove orphaned dedup entry", "key", key, "target", target)
				removed++
				continue
			}

			deleted, err := removeOrphanScript.Run(ctx, rdb, []string{key}, deltaKeyPrefix).Int64()
			if err != nil {
				return fmt.Errorf("removal failed for %s: %w", key, err)
			}
			if deleted == 0 {
				kept++
				continue
			}

			slog.Debug("Removed orphaned dedup entry", "key", key)
			removed++
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	duration := time.Since(start)
	slog.Info("Sweep summary",
		"scanned", scanned,
		"removed", removed,
		"kept", kept,
		"duration_ms", duration.Milliseconds())

	// Verify nothing orphaned remains; purges racing the sweep leave
	// stragglers for the next run.
	if !dryRun {
		remaining, err := countOrphans(ctx, rdb)
		if err != nil {
			return fmt.Errorf("verification scan failed: %w", err)
		}
		slog.Info("Orphan verification", "remaining", remaining)
		if remaining > 0 {
			slog.Warn("Orphaned dedup entries remain", "count", remaining)
		}
	}

	return nil
}

func countOrphans(ctx context.Context, rdb *goredis.Client) (int, error) {
	var cursor uint64
	var orphans int

	for {
		keys, nextCursor, err := rdb.Scan(ctx, cursor, dedupScanPattern, scanCount).Result()
		if err != nil {
			return 0, err
		}

		for _, key := range keys {
			target, err := rdb.Get(ctx, key).Result()
			if err == goredis.Nil {
				continue
			}
			if err != nil {
				return 0, err
			}

			exists, err := rdb.Exists(ctx, deltaKeyPrefix+target).Result()
			if err != nil {
				return 0, err
			}
			if exists == 0 {
				orphans++
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return orphans, nil
}

func sanitizeURL(url string) string {
	// Hide password in Redis URL for logging
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			credParts := strings.Split(parts[0], ":")
			if len(credParts) >= 2 {
				return credParts[0] + ":***@" + parts[1]
			}
		}
	}
	return url
}
