// Package cache はコレクションレスポンスのタグ付きキャッシュを提供する。
// キーは (セッションID, タグ, クエリ文字列) の組で、エントリは
// ミューテーションによるタグ無効化・ログアウトによるセッション無効化・
// TTL超過のいずれかで破棄される。
package cache

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// コレクションタグ。ミューテーション時の無効化単位。
const (
	TagUsers    = "users"
	TagInvoices = "invoices"
)

// entry はキャッシュされたレスポンスボディと格納時刻。
type entry struct {
	body     []byte
	storedAt time.Time
}

// Store はタグ付きLRUキャッシュ。LRU本体はスレッドセーフ。
type Store struct {
	entries *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time // テスト用に差し替え可能
}

// New はStoreを生成する。sizeはエントリ数の上限、ttlはエントリの有効期間。
func New(size int, ttl time.Duration) (*Store, error) {
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("LRUキャッシュの生成に失敗しました: %w", err)
	}
	return &Store{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// cacheKey はキャッシュキーを構築する。プレフィックス一致で
// セッション単位・タグ単位の無効化ができる形式にする。
func cacheKey(sessionID, tag, query string) string {
	return sessionID + "|" + tag + "|" + query
}

// Get はキャッシュされたレスポンスボディを返す。
// TTLを超過したエントリは破棄してミスとして扱う。
func (s *Store) Get(sessionID, tag, query string) ([]byte, bool) {
	key := cacheKey(sessionID, tag, query)
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.storedAt) > s.ttl {
		s.entries.Remove(key)
		return nil, false
	}
	return e.body, true
}

// Put はレスポンスボディをキャッシュする。
func (s *Store) Put(sessionID, tag, query string, body []byte) {
	s.entries.Add(cacheKey(sessionID, tag, query), entry{
		body:     body,
		storedAt: s.now(),
	})
}

// InvalidateTag は指定セッションの指定タグのエントリをすべて破棄する。
// エンティティのミューテーション成功時に呼び出す。
func (s *Store) InvalidateTag(sessionID, tag string) {
	s.removeByPrefix(sessionID + "|" + tag + "|")
}

// InvalidateSession は指定セッションの全エントリを破棄する。
// ログアウト時に呼び出し、失効したセッションのコレクションが
// 古いキャッシュから配信されないことを保証する。
func (s *Store) InvalidateSession(sessionID string) {
	s.removeByPrefix(sessionID + "|")
}

// removeByPrefix はキーがプレフィックスに一致するエントリを破棄する。
func (s *Store) removeByPrefix(prefix string) {
	for _, key := range s.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.entries.Remove(key)
		}
	}
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (s *Store) Len() int {
	return s.entries.Len()
}
