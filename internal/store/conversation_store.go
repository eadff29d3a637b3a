package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"magpie/internal/model"
	"magpie/internal/pkg/kv"
)

// 全部会话作为一个映射值存储，kv 的单次调用即是原子边界
const conversationsKey = "conversations"

// 预算超限后淘汰到预算的这个比例以下
const evictionTarget = 0.7

// 用量接近预算的报警线
const nearLimitRatio = 0.8

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("store: conversation not found")

// ConversationStore 会话存储
// 负责跨快照合并去重、预算淘汰与导入导出；底层是可插拔的 kv.Store
type ConversationStore struct {
	kvStore kv.Store
	budget  int64

	// 进程内读-改-写串行化；跨进程写入者按 last-writer-wins 容忍
	mu sync.Mutex

	now func() time.Time
}

// New 创建会话存储
func New(kvStore kv.Store, budget int64) *ConversationStore {
	if budget <= 0 {
		budget = 5 * 1024 * 1024
	}
	return &ConversationStore{
		kvStore: kvStore,
		budget:  budget,
		now:     time.Now,
	}
}

// Merge 把一批新捕获的消息合并进指定会话
// 去重键已存在时保留既有消息（可能带有用户侧元数据，从不覆盖）；
// 写回从调用方视角原子：要么整个更新后的映射持久化，要么存储保持原样
func (s *ConversationStore) Merge(ctx context.Context, conversationID, url, title string, incoming []model.Message) error {
	if conversationID == "" {
		return errors.New("store: conversation id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	conv, ok := convs[conversationID]
	if !ok {
		conv = model.Conversation{
			ConversationID: conversationID,
			CreatedAt:      now,
		}
	}

	// url/title 总是被最新观察覆盖
	conv.URL = url
	conv.Title = title
	conv.LastUpdated = now

	// 去重键 -> 既有消息下标
	byKey := make(map[string]int, len(conv.Messages))
	for i, m := range conv.Messages {
		byKey[m.DedupKey()] = i
	}

	added := 0
	for _, msg := range incoming {
		key := msg.DedupKey()
		if i, dup := byKey[key]; dup {
			// 冲突时保留序列号更小的那份，合并结果与批次顺序无关
			if msg.Sequence < conv.Messages[i].Sequence {
				conv.Messages[i] = msg
			}
			continue
		}
		byKey[key] = len(conv.Messages)
		conv.Messages = append(conv.Messages, msg)
		added++
	}

	conv.SortMessages()
	convs[conversationID] = conv

	if err := s.save(ctx, convs); err != nil {
		return err
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Int("incoming", len(incoming)).
		Int("added", added).
		Msg("conversation merged")

	return nil
}

// GetAll 返回全部会话
func (s *ConversationStore) GetAll(ctx context.Context) (map[string]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// GetOne 返回单个会话
func (s *ConversationStore) GetOne(ctx context.Context, id string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load(ctx)
	if err != nil {
		return model.Conversation{}, err
	}

	conv, ok := convs[id]
	if !ok {
		return model.Conversation{}, ErrNotFound
	}
	return conv, nil
}

// Delete 删除单个会话
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load(ctx)
	if err != nil {
		return err
	}

	if _, ok := convs[id]; !ok {
		return ErrNotFound
	}
	delete(convs, id)

	return s.save(ctx, convs)
}

// ClearAll 清空全部会话
func (s *ConversationStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kvStore.Remove(ctx, conversationsKey)
}

// Usage 存储用量统计
func (s *ConversationStore) Usage(ctx context.Context) (model.UsageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load(ctx)
	if err != nil {
		return model.UsageResponse{}, err
	}

	data, err := json.Marshal(convs)
	if err != nil {
		return model.UsageResponse{}, err
	}

	totalMessages := 0
	for _, conv := range convs {
		totalMessages += len(conv.Messages)
	}

	size := int64(len(data))
	return model.UsageResponse{
		TotalSize:         size,
		ConversationCount: len(convs),
		TotalMessages:     totalMessages,
		IsNearLimit:       float64(size) > float64(s.budget)*nearLimitRatio,
	}, nil
}

// Export 导出全部会话，附带格式版本与导出时间
func (s *ConversationStore) Export(ctx context.Context) (*model.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Export{
		ExportDate:         s.now(),
		Version:            model.ExportVersion,
		TotalConversations: len(convs),
		Conversations:      convs,
	}, nil
}

// Import 导入会话，只增加本地没有的会话 ID，从不覆盖
func (s *ConversationStore) Import(ctx context.Context, export *model.Export) (int, error) {
	if export == nil {
		return 0, errors.New("store: nil export")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for id, conv := range export.Conversations {
		if _, exists := convs[id]; exists {
			continue
		}
		convs[id] = conv
		added++
	}

	if added == 0 {
		return 0, nil
	}

	if err := s.save(ctx, convs); err != nil {
		return 0, err
	}
	return added, nil
}

// load 读取整个会话映射，key 缺失视为空存储
func (s *ConversationStore) load(ctx context.Context) (map[string]model.Conversation, error) {
	values, err := s.kvStore.Get(ctx, conversationsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}

	data, ok := values[conversationsKey]
	if !ok || len(data) == 0 {
		return map[string]model.Conversation{}, nil
	}

	var convs map[string]model.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("store: corrupt conversation map: %w", err)
	}
	return convs, nil
}

// save 序列化并写回；超出预算时先整会话淘汰再写
func (s *ConversationStore) save(ctx context.Context, convs map[string]model.Conversation) error {
	data, err := json.Marshal(convs)
	if err != nil {
		return err
	}

	if int64(len(data)) > s.budget {
		convs = s.evict(convs)
		data, err = json.Marshal(convs)
		if err != nil {
			return err
		}
	}

	if err := s.kvStore.Set(ctx, map[string][]byte{conversationsKey: data}); err != nil {
		return fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}
	return nil
}

// evict 按 LastUpdated 最旧优先淘汰整个会话，直到预计大小低于预算的 70%
// 永远不截断某个会话的消息列表来凑大小
func (s *ConversationStore) evict(convs map[string]model.Conversation) map[string]model.Conversation {
	type sized struct {
		id   string
		size int64
	}

	order := make([]string, 0, len(convs))
	for id := range convs {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		return convs[order[i]].LastUpdated.Before(convs[order[j]].LastUpdated)
	})

	sizes := make([]sized, 0, len(order))
	var total int64
	for _, id := range order {
		data, err := json.Marshal(convs[id])
		if err != nil {
			continue
		}
		sz := int64(len(data))
		sizes = append(sizes, sized{id: id, size: sz})
		total += sz
	}

	target := int64(float64(s.budget) * evictionTarget)
	result := make(map[string]model.Conversation, len(convs))
	for id, conv := range convs {
		result[id] = conv
	}

	for _, entry := range sizes {
		if total <= target {
			break
		}
		delete(result, entry.id)
		total -= entry.size
		log.Info().
			Str("conversation_id", entry.id).
			Int64("freed", entry.size).
			Msg("conversation evicted to satisfy storage budget")
	}

	return result
}
