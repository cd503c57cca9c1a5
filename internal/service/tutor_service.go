package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tutor_backend/internal/llm"
	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/tutor"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/logger"
	"tutor_backend/pkg/monitoring"
	"tutor_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultXPPerExchange = 10
	defaultSessionTitle  = "Nueva sesión"
	streamBuffer         = 16
)

// TutorService 辅导会话引擎：建会话、收发消息、记录时长
type TutorService struct {
	ChatRepo      *repository.ChatRepository
	SubjectRepo   *repository.SubjectRepository
	Subjects      *SubjectCache
	Progression   *ProgressionService
	Storage       *StorageService
	Generator     llm.Generator
	XPPerExchange int
}

func NewTutorService(
	chatRepo *repository.ChatRepository,
	subjectRepo *repository.SubjectRepository,
	subjects *SubjectCache,
	progression *ProgressionService,
	storage *StorageService,
	generator llm.Generator,
	xpPerExchange int,
) *TutorService {
	if xpPerExchange <= 0 {
		xpPerExchange = defaultXPPerExchange
	}
	return &TutorService{
		ChatRepo:      chatRepo,
		SubjectRepo:   subjectRepo,
		Subjects:      subjects,
		Progression:   progression,
		Storage:       storage,
		Generator:     generator,
		XPPerExchange: xpPerExchange,
	}
}

// SessionFilter 会话列表过滤条件
type SessionFilter struct {
	Subject string
	Search  string
}

// Exchange 一问一答及本次获得的经验
type Exchange struct {
	UserMessage      *model.ChatMessage `json:"userMessage"`
	AssistantMessage *model.ChatMessage `json:"assistantMessage"`
	XP               *tutor.XPAward     `json:"xpAwarded,omitempty"`
}

type StreamEventType string

const (
	EventUserMessage StreamEventType = "user_message"
	EventChunk       StreamEventType = "chunk"
	EventDone        StreamEventType = "done"
	EventError       StreamEventType = "error"
)

// StreamEvent 流式回复事件，done 或 error 恰好出现一次且位于最后
type StreamEvent struct {
	Type     StreamEventType    `json:"type"`
	Content  string             `json:"content,omitempty"`
	Message  *model.ChatMessage `json:"message,omitempty"`
	Exchange *Exchange          `json:"exchange,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// DurationUpdate 时长上报结果
type DurationUpdate struct {
	Duration int `json:"duration"`
	Credited int `json:"credited"`
}

// pendingExchange 用户消息已落库、等待回复的一次交互
type pendingExchange struct {
	session     *model.ChatSession
	subject     *model.Subject
	analysis    model.MessageAnalysis
	userMessage *model.ChatMessage
	prompt      string
	attachments []llm.Attachment
}

func (s *TutorService) ListSubjects() []model.Subject {
	return s.Subjects.List()
}

// resolveSubject 优先读缓存，缓存未命中时回源
func (s *TutorService) resolveSubject(ctx context.Context, id string) (*model.Subject, error) {
	if subject, ok := s.Subjects.Get(id); ok {
		return &subject, nil
	}
	return s.SubjectRepo.FindByID(ctx, id)
}

func (s *TutorService) StartSession(ctx context.Context, userID string, subjectID *string, title string) (*model.ChatSession, error) {
	var subject *model.Subject
	if subjectID != nil && *subjectID != "" {
		var err error
		if subject, err = s.resolveSubject(ctx, *subjectID); err != nil {
			return nil, err
		}
		if !subject.IsActive {
			return nil, util.ErrSubjectNotFound
		}
	} else {
		subjectID = nil
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultSessionTitle
		if subject != nil {
			title = "Sesión de " + subject.Name
		}
	}

	session := &model.ChatSession{
		UserID:          userID,
		SubjectID:       subjectID,
		Title:           title,
		IsActive:        true,
		ConceptsLearned: datatypes.JSONSlice[string]{},
	}
	if err := s.ChatRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	session.Subject = subject

	if subject != nil {
		if _, err := s.Progression.CreditConcepts(ctx, userID, subject.ID, nil, CreditOptions{NewSession: true}); err != nil {
			return nil, err
		}
	}

	logger.Log.Info("Tutor session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.Stringp("subject_id", subjectID))
	return session, nil
}

// ListSessions 返回活跃会话及最后一条消息预览
func (s *TutorService) ListSessions(ctx context.Context, userID string, filter SessionFilter) ([]model.ChatSession, error) {
	sessions, err := s.ChatRepo.ListSessions(ctx, userID, filter.Subject, filter.Search)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}
	last, err := s.ChatRepo.LastMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if m, ok := last[sessions[i].ID]; ok {
			sessions[i].LastMessage = &m
		}
	}
	return sessions, nil
}

// ownedSession 会话不存在与归属不符统一返回 ErrAccessDenied
func (s *TutorService) ownedSession(ctx context.Context, sessionID, userID string) (*model.ChatSession, error) {
	session, err := s.ChatRepo.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			return nil, util.ErrAccessDenied
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, util.ErrAccessDenied
	}
	return session, nil
}

func (s *TutorService) ListMessages(ctx context.Context, sessionID, userID string) ([]model.ChatMessage, error) {
	if _, err := s.ownedSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.ChatRepo.ListMessages(ctx, sessionID)
}

// SubmitMessage 缓冲模式：生成失败时以兜底回复完成本次交互
func (s *TutorService) SubmitMessage(ctx context.Context, sessionID, userID, content string, uploads []Upload) (*Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "tutor.SubmitMessage", attribute.String("session.id", sessionID))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	pending, err := s.prepare(ctx, sessionID, userID, content, uploads)
	if err != nil {
		return nil, err
	}

	text, genErr := s.Generator.Generate(ctx, pending.prompt, pending.attachments)
	fallback := false
	if genErr != nil || strings.TrimSpace(text) == "" {
		text = s.fallback(pending, "buffered", genErr)
		fallback = true
	}

	exchange, err := s.complete(context.WithoutCancel(ctx), pending, text, false, fallback)
	return exchange, err
}

// SubmitMessageStream 流式模式。用户消息同步落库后返回事件通道，
// 生产者协程保证最终恰好发出一个 done 或 error 事件。
// 调用方放弃时仍会持久化已收到的部分文本，没有任何文本则写入兜底回复。
func (s *TutorService) SubmitMessageStream(ctx context.Context, sessionID, userID, content string, uploads []Upload) (<-chan StreamEvent, error) {
	pending, err := s.prepare(ctx, sessionID, userID, content, uploads)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, streamBuffer)
	go s.produce(ctx, pending, events)
	return events, nil
}

func (s *TutorService) produce(ctx context.Context, pending *pendingExchange, events chan<- StreamEvent) {
	defer close(events)
	monitoring.ActiveStreams.Inc()
	defer monitoring.ActiveStreams.Dec()

	ctx, span := tracing.StartSpan(ctx, "tutor.SubmitMessageStream", attribute.String("session.id", pending.session.ID))
	bookkeeping := context.WithoutCancel(ctx)

	abandoned := !emit(ctx, events, StreamEvent{Type: EventUserMessage, Message: pending.userMessage})

	var b strings.Builder
	chunks, errs := s.Generator.GenerateStream(ctx, pending.prompt, pending.attachments)
	for c := range chunks {
		b.WriteString(c)
		monitoring.StreamChunkCounter.Inc()
		if !abandoned && !emit(ctx, events, StreamEvent{Type: EventChunk, Content: c}) {
			abandoned = true
		}
	}
	genErr := <-errs
	if ctx.Err() != nil {
		abandoned = true
	}

	text := b.String()
	var exchange *Exchange
	var err error
	switch {
	case abandoned:
		partial := strings.TrimSpace(text) != ""
		if !partial {
			text = s.fallback(pending, "stream", genErr)
		}
		logger.Log.Info("Tutor stream abandoned by caller",
			zap.String("session_id", pending.session.ID),
			zap.Bool("partial", partial))
		exchange, err = s.complete(bookkeeping, pending, text, partial, !partial)
		tracing.EndSpan(span, err)
		return

	case genErr == nil && strings.TrimSpace(text) != "":
		exchange, err = s.complete(bookkeeping, pending, text, false, false)
		if err == nil {
			emit(ctx, events, StreamEvent{Type: EventDone, Exchange: exchange})
			tracing.EndSpan(span, nil)
			return
		}

	default:
		text = s.fallback(pending, "stream", genErr)
		exchange, err = s.complete(bookkeeping, pending, text, false, true)
	}

	// 生成成功但落库失败时，Content 仍是模型生成的完整回复
	ev := StreamEvent{Type: EventError, Content: text, Exchange: exchange, Error: "generation failed"}
	if err != nil {
		ev.Error = "store failure"
		logger.Log.Error("Failed to persist tutor reply",
			zap.String("session_id", pending.session.ID), zap.Error(err))
	}
	emit(ctx, events, ev)
	tracing.EndSpan(span, err)
}

func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// prepare 校验归属、分类、保存附件与用户消息并构建提示词
func (s *TutorService) prepare(ctx context.Context, sessionID, userID, content string, uploads []Upload) (*pendingExchange, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(uploads) == 0 {
		return nil, fmt.Errorf("%w: message content is empty", util.ErrInvalidInput)
	}
	if len(uploads) > util.MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments per message", util.ErrInvalidInput, util.MaxAttachments)
	}

	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	pending := &pendingExchange{session: session}
	if session.SubjectID != nil {
		subject, err := s.resolveSubject(ctx, *session.SubjectID)
		switch {
		case err == nil:
			pending.subject = subject
		case errors.Is(err, util.ErrSubjectNotFound):
			logger.Log.Warn("Session subject no longer exists", zap.String("subject_id", *session.SubjectID))
		default:
			return nil, err
		}
	}

	var vocabulary []string
	systemPrompt := ""
	if pending.subject != nil {
		vocabulary = pending.subject.Concepts
		systemPrompt = pending.subject.SystemPrompt
	}
	pending.analysis = tutor.Classify(content, vocabulary, tutor.RoleStudent)

	recent, err := s.ChatRepo.RecentMessages(ctx, sessionID, tutor.HistoryWindow)
	if err != nil {
		return nil, err
	}

	stored := make([]model.Attachment, 0, len(uploads))
	for _, up := range uploads {
		att, err := s.Storage.StoreAttachment(ctx, sessionID, up)
		if err != nil {
			return nil, err
		}
		stored = append(stored, att)
		pending.attachments = append(pending.attachments, llm.Attachment{Name: att.Name, MIMEType: att.MIMEType, Data: up.Data})
	}

	pending.userMessage = &model.ChatMessage{
		SessionID:     sessionID,
		Content:       content,
		IsUserMessage: true,
		MessageType:   pending.analysis.MessageType,
		Difficulty:    pending.analysis.Difficulty,
		Concepts:      pending.analysis.Concepts,
		Analysis:      datatypes.NewJSONType(pending.analysis),
		Attachments:   stored,
	}
	if err := s.ChatRepo.AppendMessage(ctx, pending.userMessage); err != nil {
		return nil, err
	}

	pending.prompt = tutor.BuildPrompt(systemPrompt, recent, content, pending.analysis.NeedsGuidance)
	return pending, nil
}

// complete 保存助手回复并记入会话概念、学科进度与经验
func (s *TutorService) complete(ctx context.Context, pending *pendingExchange, text string, partial, fallback bool) (*Exchange, error) {
	analysis := tutor.ClassifyReply(text, pending.analysis)
	analysis.Partial = partial
	analysis.Fallback = fallback

	reply := &model.ChatMessage{
		SessionID:     pending.session.ID,
		Content:       text,
		IsUserMessage: false,
		MessageType:   analysis.MessageType,
		Difficulty:    analysis.Difficulty,
		Concepts:      analysis.Concepts,
		Analysis:      datatypes.NewJSONType(analysis),
	}
	if err := s.ChatRepo.AppendMessage(ctx, reply); err != nil {
		return nil, err
	}

	exchange := &Exchange{UserMessage: pending.userMessage, AssistantMessage: reply}
	concepts := pending.analysis.Concepts

	if err := s.mergeSessionConcepts(ctx, pending.session, concepts); err != nil {
		logger.Log.Warn("Failed to merge session concepts", zap.String("session_id", pending.session.ID), zap.Error(err))
	}

	if pending.session.SubjectID == nil {
		return exchange, nil
	}
	subjectID := *pending.session.SubjectID
	userID := pending.session.UserID

	if _, err := s.Progression.CreditConcepts(ctx, userID, subjectID, concepts, CreditOptions{MessageDelta: 1}); err != nil {
		logger.Log.Error("Failed to credit subject progress",
			zap.String("user_id", userID), zap.String("subject_id", subjectID), zap.Error(err))
		return exchange, nil
	}
	award, err := s.Progression.AwardXP(ctx, userID, subjectID, s.XPPerExchange)
	if err != nil {
		logger.Log.Error("Failed to award xp",
			zap.String("user_id", userID), zap.String("subject_id", subjectID), zap.Error(err))
		return exchange, nil
	}
	exchange.XP = award
	return exchange, nil
}

// mergeSessionConcepts 会话概念集合的比较并交换合并
func (s *TutorService) mergeSessionConcepts(ctx context.Context, session *model.ChatSession, concepts []string) error {
	if len(concepts) == 0 {
		return nil
	}
	current := session
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		merged, added := model.AppendUnique(current.ConceptsLearned, concepts...)
		if added == 0 {
			return nil
		}
		ok, err := s.ChatRepo.MergeConcepts(ctx, current, merged)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		casBackoff(attempt)
		if current, err = s.ChatRepo.FindSession(ctx, session.ID); err != nil {
			return err
		}
	}
	return util.ErrConflict
}

func (s *TutorService) fallbackText(pending *pendingExchange) string {
	subjectID, systemPrompt := "", ""
	if pending.session.SubjectID != nil {
		subjectID = *pending.session.SubjectID
	}
	if pending.subject != nil {
		systemPrompt = pending.subject.SystemPrompt
	}
	return tutor.FallbackReply(subjectID, systemPrompt)
}

func (s *TutorService) fallback(pending *pendingExchange, mode string, cause error) string {
	monitoring.FallbackCounter.WithLabelValues(mode).Inc()
	logger.Log.Warn("Text generation failed, using fallback reply",
		zap.String("session_id", pending.session.ID),
		zap.String("mode", mode),
		zap.Error(cause))
	return s.fallbackText(pending)
}

// UpdateDuration 时长只增不减，增量计入学科学习时长
func (s *TutorService) UpdateDuration(ctx context.Context, sessionID, userID string, seconds int) (*DurationUpdate, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("%w: duration must be non-negative", util.ErrInvalidInput)
	}
	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	previous, updated, err := s.ChatRepo.RaiseDuration(ctx, sessionID, seconds)
	if err != nil {
		return nil, err
	}
	if !updated {
		return &DurationUpdate{Duration: previous}, nil
	}

	delta := seconds - previous
	if session.SubjectID != nil {
		if err := s.Progression.CreditTime(ctx, userID, *session.SubjectID, delta); err != nil {
			return nil, err
		}
	}
	return &DurationUpdate{Duration: seconds, Credited: delta}, nil
}

// EndSession 只停用会话，不删除消息
func (s *TutorService) EndSession(ctx context.Context, sessionID, userID string) error {
	if _, err := s.ownedSession(ctx, sessionID, userID); err != nil {
		return err
	}
	return s.ChatRepo.Deactivate(ctx, sessionID)
}
