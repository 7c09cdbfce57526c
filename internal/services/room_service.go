package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"github.com/Webizinnovation/ServiceAppBack/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrProviderNotFound = errors.New("provider not found")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type RoomService struct {
	db          *pgxpool.Pool
	roomRepo    *repository.RoomRepository
	messageRepo *repository.MessageRepository
	userRepo    userReader
	publisher   notify.Publisher
	logger      *zap.Logger
}

type MessageDelivery struct {
	Room        *models.Room
	Message     *models.Message
	RecipientID int64
}

type SendMessageInput struct {
	Kind            models.MessageKind `json:"kind"`
	Content         string             `json:"content"`
	Filename        *string            `json:"filename"`
	VoiceDurationMS int64              `json:"voice_duration_ms"`
}

func NewRoomService(
	db *pgxpool.Pool,
	roomRepo *repository.RoomRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	publisher notify.Publisher,
	logger *zap.Logger,
) *RoomService {
	return &RoomService{
		db:          db,
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreateRoom opens (or reuses) the room between the acting user and the
// provider. Only the user side may initiate.
func (s *RoomService) CreateRoom(
	ctx context.Context,
	actorID int64,
	role models.Role,
	providerID int64,
) (*models.Room, error) {
	if role != models.RoleUser {
		return nil, ErrForbidden
	}
	if providerID <= 0 || providerID == actorID {
		return nil, ErrInvalidInput
	}

	provider, err := s.userRepo.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if provider.Role != models.RoleProvider {
		return nil, ErrInvalidInput
	}

	room, err := s.roomRepo.CreateOrGet(ctx, actorID, providerID)
	if err != nil {
		return nil, err
	}

	s.publishRoom(ctx, room, notify.OpInsert)
	return room, nil
}

func (s *RoomService) SendMessage(
	ctx context.Context,
	actorID int64,
	role models.Role,
	roomID int64,
	input SendMessageInput,
) (*MessageDelivery, error) {
	if !role.Valid() {
		return nil, ErrForbidden
	}
	if roomID <= 0 {
		return nil, ErrInvalidInput
	}

	kind := input.Kind
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() {
		return nil, ErrInvalidInput
	}

	content := strings.TrimSpace(input.Content)
	if kind == models.KindText && content == "" {
		return nil, ErrInvalidInput
	}
	if input.VoiceDurationMS < 0 {
		return nil, ErrInvalidInput
	}

	room, err := s.roomRepo.GetByIDForParticipant(ctx, roomID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if room.ParticipantID(role) != actorID {
		return nil, ErrForbidden
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txRoomRepo := repository.NewRoomRepository(tx)

	message := &models.Message{
		RoomID:          roomID,
		SenderID:        actorID,
		SenderRole:      role,
		Kind:            kind,
		Content:         content,
		Filename:        input.Filename,
		VoiceDurationMS: input.VoiceDurationMS,
	}
	if err := txMessageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := txRoomRepo.Touch(ctx, roomID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.publishMessage(ctx, room, notify.OpInsert)
	s.publishRoom(ctx, room, notify.OpUpdate)

	return &MessageDelivery{
		Room:        room,
		Message:     message,
		RecipientID: room.ParticipantID(role.Counterpart()),
	}, nil
}

// ListMessages pages through a room's history and marks the fetched
// counterpart messages read in the same transaction, so opening a room
// detail view settles its unread state.
func (s *RoomService) ListMessages(
	ctx context.Context,
	actorID int64,
	role models.Role,
	roomID int64,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if !role.Valid() {
		return nil, 0, ErrForbidden
	}
	if roomID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	room, err := s.roomRepo.GetByIDForParticipant(ctx, roomID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, pgx.ErrNoRows
		}
		return nil, 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)

	messages, total, err := txMessageRepo.ListByRoom(
		ctx,
		roomID,
		limit,
		(page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}

	messageIDs := make([]int64, 0, len(messages))
	for _, message := range messages {
		messageIDs = append(messageIDs, message.ID)
	}

	if err := txMessageRepo.MarkMessagesRead(ctx, messageIDs, actorID); err != nil {
		return nil, 0, err
	}

	for i := range messages {
		if messages[i].SenderID != actorID {
			messages[i].IsRead = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	s.publishMessage(ctx, room, notify.OpUpdate)

	return messages, total, nil
}

// Change events are best-effort: a publish failure degrades live
// updates, it never fails the write that already committed.
func (s *RoomService) publishRoom(ctx context.Context, room *models.Room, op string) {
	ev := notify.NewEvent(notify.TableRooms, op, room.ID, room.UserID, room.ProviderID)
	if err := s.publisher.PublishRoomChange(ctx, ev); err != nil {
		s.logger.Warn("room change publish failed", zap.Int64("room_id", room.ID), zap.Error(err))
	}
}

func (s *RoomService) publishMessage(ctx context.Context, room *models.Room, op string) {
	ev := notify.NewEvent(notify.TableMessages, op, room.ID, room.UserID, room.ProviderID)
	if err := s.publisher.PublishMessageChange(ctx, ev); err != nil {
		s.logger.Warn("message change publish failed", zap.Int64("room_id", room.ID), zap.Error(err))
	}
}
