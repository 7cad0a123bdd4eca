// Package guard は保護対象UIルートへのナビゲーション可否を判定する。
// 判定は純粋関数であり、セッションとルート束縛のみから結果が決まる。
// 実際のリダイレクトやレスポンス生成はハンドラー側の責務。
package guard

import (
	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// Action はナビゲーション判定の結果種別。
type Action int

const (
	// Allow は要求された画面の表示を許可する。
	Allow Action = iota
	// RedirectToLogin は未認証アクターをログイン画面へ送る。
	RedirectToLogin
	// RedirectToUnauthorized は認証済みだが権限のないアクターを拒否画面へ送る。
	RedirectToUnauthorized
	// RedirectToLanding は認証済みアクターをロール別のランディング画面へ送る。
	RedirectToLanding
)

// Decision はナビゲーション判定の結果。リダイレクトの場合はTargetに遷移先パスを持つ。
type Decision struct {
	Action Action
	Target string
}

// Decide は保護対象ルートへのナビゲーション1回分を判定する。
// 状態遷移:
//   - セッションなし → RedirectToLogin
//   - セッションあり・許可リスト外のロール → RedirectToUnauthorized
//   - セッションあり・許可リスト内のロール → Allow
//
// 許可リストが空の束縛は全ロールを拒否する（フェイルクローズド）。
func Decide(sess *model.Session, binding role.RouteBinding) Decision {
	if !sess.Authenticated() {
		return Decision{Action: RedirectToLogin, Target: role.PathLogin}
	}

	if !binding.Allows(sess.Role) {
		return Decision{Action: RedirectToUnauthorized, Target: role.PathUnauthorized}
	}

	return Decision{Action: Allow}
}

// DecidePublic は公開専用ルート（ログイン画面）へのナビゲーションを判定する。
// 保護ルートの逆で、認証済みアクターはロール別ランディング画面へ短絡させ、
// ログイン画面には到達させない。
func DecidePublic(sess *model.Session) Decision {
	if sess.Authenticated() {
		return Decision{Action: RedirectToLanding, Target: role.LandingPath(sess.Role)}
	}
	return Decision{Action: Allow}
}
