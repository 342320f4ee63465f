package postgres

// SQL for the raw reading store, the break log, and the retention lifecycle.
//
// Compressed tables hold the original sample values as float8 arrays keyed by
// (minute bucket, station), so aggregation re-expands them and produces
// results identical to the raw rows. Nullable downtime components are stored
// as NaN inside the arrays to keep samples aligned positionally.

const (
	queryInsertCycleTime = `
		INSERT INTO cycle_times (
			time, station_id, actual_seconds, target_seconds, deviation_seconds
		)
		VALUES ($1, $2, $3, $4, $5)
	`

	queryInsertAvailability = `
		INSERT INTO availability (
			time, station_id, availability_pct,
			fault_seconds, blocked_seconds, starved_seconds
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	queryGetQualitySnapshot = `
		SELECT time, good_parts, reject_parts, rework_parts
		FROM quality_counters
		WHERE shift_number = $1 AND hour_index = $2
	`

	// queryUpsertQualitySnapshot replaces the row for the (shift, hour) key.
	// Last-write-wins resolution happens in the ingestion service under a
	// per-key lock; by the time this runs the snapshot has already won.
	queryUpsertQualitySnapshot = `
		INSERT INTO quality_counters (
			shift_number, hour_index, time, good_parts, reject_parts, rework_parts
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shift_number, hour_index) DO UPDATE SET
			time         = EXCLUDED.time,
			good_parts   = EXCLUDED.good_parts,
			reject_parts = EXCLUDED.reject_parts,
			rework_parts = EXCLUDED.rework_parts
	`

	queryInsertConnectionEvent = `
		INSERT INTO connection_events (id, time, event_type, endpoint, details)
		VALUES ($1, $2, $3, $4, $5)
	`

	queryRetrieveCycleTimes = `
		SELECT time, station_id, actual_seconds, target_seconds
		FROM cycle_times
		WHERE time >= $1
		  AND time < $2
		  AND ($3::int[] IS NULL OR station_id = ANY($3))
		ORDER BY time ASC, station_id ASC
	`

	queryRetrieveCompressedCycleTimes = `
		SELECT bucket, station_id, actual_samples, target_samples
		FROM compressed_cycle_times
		WHERE bucket >= $1
		  AND bucket < $2
		  AND ($3::int[] IS NULL OR station_id = ANY($3))
		ORDER BY bucket ASC, station_id ASC
	`

	queryRetrieveAvailability = `
		SELECT time, station_id, availability_pct,
		       fault_seconds, blocked_seconds, starved_seconds
		FROM availability
		WHERE time >= $1
		  AND time < $2
		  AND ($3::int[] IS NULL OR station_id = ANY($3))
		ORDER BY time ASC, station_id ASC
	`

	queryRetrieveCompressedAvailability = `
		SELECT bucket, station_id, availability_samples,
		       fault_samples, blocked_samples, starved_samples
		FROM compressed_availability
		WHERE bucket >= $1
		  AND bucket < $2
		  AND ($3::int[] IS NULL OR station_id = ANY($3))
		ORDER BY bucket ASC, station_id ASC
	`

	queryQualityTotals = `
		SELECT COALESCE(SUM(good_parts), 0),
		       COALESCE(SUM(reject_parts), 0),
		       COALESCE(SUM(rework_parts), 0)
		FROM quality_counters
		WHERE time >= $1 AND time < $2
	`

	queryInsertBreak = `
		INSERT INTO actual_breaks (
			start_time, end_time, shift_number, scheduled_break_id, duration_minutes
		)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	queryCloseBreak = `
		UPDATE actual_breaks
		SET end_time = $1,
		    duration_minutes = FLOOR(EXTRACT(EPOCH FROM ($1::timestamptz - start_time)) / 60)
		WHERE id = $2
	`

	queryRetrieveBreaks = `
		SELECT id, start_time, end_time, shift_number, scheduled_break_id, duration_minutes
		FROM actual_breaks
		WHERE start_time >= $1
		  AND start_time < $2
		  AND ($3 = 0 OR shift_number = $3)
		ORDER BY start_time ASC
	`

	// queryCompressCycleTimes moves raw rows older than the cutoff into
	// per-minute compressed sample rows in a single statement. Idempotent:
	// a second run finds no raw rows and moves nothing.
	queryCompressCycleTimes = `
		WITH moved AS (
			DELETE FROM cycle_times
			WHERE time < $1
			RETURNING time, station_id, actual_seconds, target_seconds
		),
		packed AS (
			INSERT INTO compressed_cycle_times (
				bucket, station_id, actual_samples, target_samples, sample_count
			)
			SELECT date_trunc('minute', time),
			       station_id,
			       array_agg(actual_seconds ORDER BY time),
			       array_agg(target_seconds ORDER BY time),
			       count(*)
			FROM moved
			GROUP BY 1, 2
			ON CONFLICT (bucket, station_id) DO UPDATE SET
				actual_samples = compressed_cycle_times.actual_samples || EXCLUDED.actual_samples,
				target_samples = compressed_cycle_times.target_samples || EXCLUDED.target_samples,
				sample_count   = compressed_cycle_times.sample_count + EXCLUDED.sample_count
		)
		SELECT count(*) FROM moved
	`

	queryCompressAvailability = `
		WITH moved AS (
			DELETE FROM availability
			WHERE time < $1
			RETURNING time, station_id, availability_pct,
			          fault_seconds, blocked_seconds, starved_seconds
		),
		packed AS (
			INSERT INTO compressed_availability (
				bucket, station_id, availability_samples,
				fault_samples, blocked_samples, starved_samples, sample_count
			)
			SELECT date_trunc('minute', time),
			       station_id,
			       array_agg(availability_pct ORDER BY time),
			       array_agg(COALESCE(fault_seconds, 'NaN'::float8) ORDER BY time),
			       array_agg(COALESCE(blocked_seconds, 'NaN'::float8) ORDER BY time),
			       array_agg(COALESCE(starved_seconds, 'NaN'::float8) ORDER BY time),
			       count(*)
			FROM moved
			GROUP BY 1, 2
			ON CONFLICT (bucket, station_id) DO UPDATE SET
				availability_samples = compressed_availability.availability_samples || EXCLUDED.availability_samples,
				fault_samples        = compressed_availability.fault_samples || EXCLUDED.fault_samples,
				blocked_samples      = compressed_availability.blocked_samples || EXCLUDED.blocked_samples,
				starved_samples      = compressed_availability.starved_samples || EXCLUDED.starved_samples,
				sample_count         = compressed_availability.sample_count + EXCLUDED.sample_count
		)
		SELECT count(*) FROM moved
	`

	queryDeleteCycleTimes = `
		WITH raw AS (
			DELETE FROM cycle_times WHERE time < $1 RETURNING 1
		),
		comp AS (
			DELETE FROM compressed_cycle_times WHERE bucket < $1 RETURNING 1
		)
		SELECT (SELECT count(*) FROM raw) + (SELECT count(*) FROM comp)
	`

	queryDeleteAvailability = `
		WITH raw AS (
			DELETE FROM availability WHERE time < $1 RETURNING 1
		),
		comp AS (
			DELETE FROM compressed_availability WHERE bucket < $1 RETURNING 1
		)
		SELECT (SELECT count(*) FROM raw) + (SELECT count(*) FROM comp)
	`

	queryDeleteConnectionEvents = `
		DELETE FROM connection_events WHERE time < $1
	`
)
