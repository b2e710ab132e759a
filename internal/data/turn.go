package data

import (
	"context"
	"fmt"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// turnRepo implements the turn repository on top of the warehouse
type turnRepo struct {
	wh  *Warehouse
	loc *time.Location
}

// NewTurnRepo creates a turn repository. loc is the timezone of stored timestamps.
func NewTurnRepo(wh *Warehouse, loc *time.Location) repo.TurnRepo {
	if wh == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &turnRepo{wh: wh, loc: loc}
}

// Append inserts one row
func (r *turnRepo) Append(ctx context.Context, row repo.TurnRow) error {
	db, err := r.wh.Handle(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, r.wh.rebind(fmt.Sprintf(`
		INSERT INTO %s (
			user_id, message_ts, channel_id, message_text, bot_response, message_type,
			input_tokens, output_tokens, total_tokens, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.wh.Table())),
		row.UserID, row.MessageTS, row.ChannelID, row.MessageText, row.BotResponse, row.MessageType,
		row.InputTokens, row.OutputTokens, row.TotalTokens, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// RecentTurns returns the most recent message turns for (channel, user), most recent first
func (r *turnRepo) RecentTurns(ctx context.Context, channelID, userID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	db, err := r.wh.Handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, r.wh.rebind(fmt.Sprintf(`
		SELECT message_text, bot_response, message_ts, message_type,
			input_tokens, output_tokens, total_tokens
		FROM %s
		WHERE channel_id = ? AND user_id = ? AND message_type = ?
		ORDER BY message_ts DESC, created_at DESC
		LIMIT ?
	`, r.wh.Table())), channelID, userID, domain.EventTypeMessage, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var (
			text, response *string
			ts, msgType    string
			usage          domain.TokenUsage
		)
		if err := rows.Scan(&text, &response, &ts, &msgType, &usage.Input, &usage.Output, &usage.Total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		turns = append(turns, domain.ConversationTurn{
			ChannelID:   channelID,
			UserID:      userID,
			MessageText: deref(text),
			BotResponse: deref(response),
			MessageType: msgType,
			Timestamp:   repo.ParseRowTime(ts, r.loc),
			Usage:       usage,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return turns, nil
}

// Available reports whether the warehouse is connected
func (r *turnRepo) Available() bool {
	return r.wh.Available()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WarehouseReport is the result of a warehouse diagnostic run
type WarehouseReport struct {
	Driver       string
	Table        string
	Columns      []string
	TestInserted bool
	TestReadBack bool
}

// DiagnoseWarehouse connects, lists the table columns, then writes a
// message_type "test" row and reads it back.
func DiagnoseWarehouse(ctx context.Context, wh *Warehouse, loc *time.Location, now time.Time) (*WarehouseReport, error) {
	if loc == nil {
		loc = time.UTC
	}
	report := &WarehouseReport{Driver: wh.Driver(), Table: wh.Table()}

	db, err := wh.Handle(ctx)
	if err != nil {
		return report, fmt.Errorf("connect: %w", err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT 0`, wh.Table()))
	if err != nil {
		return report, fmt.Errorf("inspect table: %w", err)
	}
	report.Columns, err = rows.Columns()
	rows.Close()
	if err != nil {
		return report, fmt.Errorf("list columns: %w", err)
	}

	stamp := now.In(loc).Format(repo.TimeLayout)
	row := repo.TurnRow{
		UserID:      "diagnostic",
		MessageTS:   now.In(loc).Format(repo.MessageTimeLayout),
		ChannelID:   "diagnostic",
		MessageText: "warehouse diagnostic",
		BotResponse: "ok",
		MessageType: "test",
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
	}
	store := &turnRepo{wh: wh, loc: loc}
	if err := store.Append(ctx, row); err != nil {
		return report, fmt.Errorf("insert test row: %w", err)
	}
	report.TestInserted = true

	var count int
	err = db.QueryRowContext(ctx, wh.rebind(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_id = ? AND message_type = ? AND created_at = ?`, wh.Table())),
		row.UserID, row.MessageType, row.CreatedAt,
	).Scan(&count)
	if err != nil {
		return report, fmt.Errorf("read test row: %w", err)
	}
	report.TestReadBack = count > 0
	return report, nil
}
