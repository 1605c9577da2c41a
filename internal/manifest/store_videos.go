package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FindVideoBySHA looks up a video by its content fingerprint. Returns
// (nil, nil) when the fingerprint is unknown.
func (sn *Session) FindVideoBySHA(ctx context.Context, sha string) (*Video, error) {
	video := &Video{}
	err := sn.tx.QueryRowContext(ctx, `
        SELECT id, sha256, absolute_path, filename, suffix, COALESCE(movie_id, 0)
        FROM videos WHERE sha256 = ?`, strings.ToLower(sha)).
		Scan(&video.ID, &video.SHA256, &video.AbsolutePath, &video.Filename, &video.Suffix, &video.MovieID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find video by sha: %w", err)
	}
	if video.Stages, err = sn.loadVideoStages(ctx, video.ID); err != nil {
		return nil, err
	}
	return video, nil
}

// RegisterVideo inserts a newly discovered video under a movie and seeds
// every stage row as pending. The fingerprint must be unseen.
func (sn *Session) RegisterVideo(ctx context.Context, movieID int64, sha, absolutePath string) (*Video, error) {
	sha = strings.ToLower(strings.TrimSpace(sha))
	filename := filepath.Base(absolutePath)
	suffix := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !SuffixAllowed(suffix) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSuffix, suffix)
	}

	now := timestamp()
	result, err := sn.tx.ExecContext(ctx, `
        INSERT INTO videos (sha256, absolute_path, filename, suffix, movie_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sha, absolutePath, filename, suffix, movieID, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHash, sha)
		}
		return nil, fmt.Errorf("insert video %s: %w", filename, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	video := &Video{
		ID:           id,
		SHA256:       sha,
		AbsolutePath: absolutePath,
		Filename:     filename,
		Suffix:       suffix,
		MovieID:      movieID,
	}
	for _, stage := range VideoStageOrder {
		if _, err := sn.tx.ExecContext(ctx,
			`INSERT INTO video_stages (video_id, stage, status, updated_at) VALUES (?, ?, ?, ?)`,
			id, stage, StatusPending, now); err != nil {
			return nil, fmt.Errorf("seed video stage %s: %w", stage, err)
		}
		video.Stages = append(video.Stages, StageRow{Stage: stage, Status: StatusPending})
	}
	return video, nil
}

// UpdateVideoLocation records that a known fingerprint now lives at a new
// path, preserving all stage progress.
func (sn *Session) UpdateVideoLocation(ctx context.Context, video *Video, absolutePath string) error {
	filename := filepath.Base(absolutePath)
	suffix := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, err := sn.tx.ExecContext(ctx,
		`UPDATE videos SET absolute_path = ?, filename = ?, suffix = ?, updated_at = ? WHERE id = ?`,
		absolutePath, filename, suffix, timestamp(), video.ID); err != nil {
		return fmt.Errorf("update video location: %w", err)
	}
	video.AbsolutePath = absolutePath
	video.Filename = filename
	video.Suffix = suffix
	return nil
}

// SaveVideoStages flushes the in-memory stage rows of one video.
func (sn *Session) SaveVideoStages(ctx context.Context, video *Video) error {
	now := timestamp()
	for _, row := range video.Stages {
		if !IsVideoStage(row.Stage) {
			return fmt.Errorf("%w: %q", ErrUnknownStage, row.Stage)
		}
		if _, err := sn.tx.ExecContext(ctx, `
            INSERT INTO video_stages (video_id, stage, status, by_product_path, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT (video_id, stage) DO UPDATE SET
                status = excluded.status,
                by_product_path = excluded.by_product_path,
                updated_at = excluded.updated_at`,
			video.ID, row.Stage, row.Status, nullableString(row.ByProduct), now); err != nil {
			return fmt.Errorf("save video stage %s: %w", row.Stage, err)
		}
	}
	return nil
}

func (sn *Session) loadVideos(ctx context.Context, movieID int64) ([]*Video, error) {
	rows, err := sn.tx.QueryContext(ctx, `
        SELECT id, sha256, absolute_path, filename, suffix
        FROM videos WHERE movie_id = ? ORDER BY filename`, movieID)
	if err != nil {
		return nil, fmt.Errorf("load videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video := &Video{MovieID: movieID}
		if err := rows.Scan(&video.ID, &video.SHA256, &video.AbsolutePath, &video.Filename, &video.Suffix); err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, video := range videos {
		if video.Stages, err = sn.loadVideoStages(ctx, video.ID); err != nil {
			return nil, err
		}
	}
	return videos, nil
}

func (sn *Session) loadVideoStages(ctx context.Context, videoID int64) ([]StageRow, error) {
	rows, err := sn.tx.QueryContext(ctx, `
        SELECT stage, status, COALESCE(by_product_path, '')
        FROM video_stages WHERE video_id = ?`, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video stages: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]StageRow)
	for rows.Next() {
		var row StageRow
		if err := rows.Scan(&row.Stage, &row.Status, &row.ByProduct); err != nil {
			return nil, err
		}
		loaded[row.Stage] = row
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Return rows in canonical execution order.
	stages := make([]StageRow, 0, len(VideoStageOrder))
	for _, stage := range VideoStageOrder {
		if row, ok := loaded[stage]; ok {
			stages = append(stages, row)
		} else {
			stages = append(stages, StageRow{Stage: stage, Status: StatusPending})
		}
	}
	return stages, nil
}

// MovieIDs returns every movie id ordered by code, for a full-library pass.
func (sn *Session) MovieIDs(ctx context.Context) ([]int64, error) {
	rows, err := sn.tx.QueryContext(ctx, `SELECT id FROM movies ORDER BY label, number`)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
