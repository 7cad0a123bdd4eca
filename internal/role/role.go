// Package role はロール階層の静的な定義を提供する。
// ロールごとのAPIプレフィックス、作成可能ロールの隣接表、UIルートの許可リストは
// すべてこのパッケージの固定テーブルとして一元管理する。
package role

// Role は管理画面の4段階ロールを表す閉じた列挙。
type Role string

const (
	SuperAdmin  Role = "SUPER_ADMIN"
	Admin       Role = "ADMIN"
	UnitManager Role = "UNIT_MANAGER"
	User        Role = "USER"
)

// Parse は文字列をRoleに変換する。未知の値の場合はokがfalseになる。
func Parse(s string) (Role, bool) {
	switch Role(s) {
	case SuperAdmin, Admin, UnitManager, User:
		return Role(s), true
	default:
		return "", false
	}
}

// Valid はロールが4値のいずれかであるかを返す。
func (r Role) Valid() bool {
	_, ok := Parse(string(r))
	return ok
}

// バックエンドAPIのロール別プレフィックス。
const (
	PrefixSuperAdmin  = "/super-admin"
	PrefixAdmin       = "/admin"
	PrefixUnitManager = "/unit-manager"
	PrefixUser        = "/user"
)

// basePrefixes はロールからAPIプレフィックスへの固定対応表。
var basePrefixes = map[Role]string{
	SuperAdmin:  PrefixSuperAdmin,
	Admin:       PrefixAdmin,
	UnitManager: PrefixUnitManager,
	User:        PrefixUser,
}

// BasePrefix はロールに対応するバックエンドAPIのプレフィックスを返す。
// ロールが空または未知の場合は最小権限のPrefixUserにフォールバックする。
// 純粋な参照であり、呼び出しごとに評価される（キャッシュしない）。
func BasePrefix(r Role) string {
	if prefix, ok := basePrefixes[r]; ok {
		return prefix
	}
	return PrefixUser
}

// createsRole は「誰が誰を作成できるか」の隣接表。
// SUPER_ADMINはADMINを、ADMINはUNIT_MANAGERを、UNIT_MANAGERはUSERを作成する。
// USERは誰も作成できない。
var createsRole = map[Role]Role{
	SuperAdmin:  Admin,
	Admin:       UnitManager,
	UnitManager: User,
}

// CreatesRole はロールrが作成できる1段下のロールを返す。
// 作成権限を持たないロール（USERおよび未知のロール）の場合はokがfalseになる。
func CreatesRole(r Role) (Role, bool) {
	created, ok := createsRole[r]
	return created, ok
}

// createPaths は作成対象ロールごとのバックエンド作成エンドポイント。
var createPaths = map[Role]string{
	Admin:       "/create-admin",
	UnitManager: "/create-unit-manager",
	User:        "/create-user",
}

// CreatePath は作成対象ロールに対応する作成エンドポイントのパスを返す。
// 作成対象になり得ないロール（SUPER_ADMIN等）の場合はokがfalseになる。
func CreatePath(created Role) (string, bool) {
	path, ok := createPaths[created]
	return path, ok
}

// ログイン後のランディング画面パス。
const (
	PathLogin        = "/"
	PathDashboard    = "/dashboard"
	PathInvoice      = "/invoice"
	PathUnauthorized = "/unauthorized"
)

// LandingPath はログイン直後に遷移すべきUIパスを返す。
// SUPER_ADMINは管理ダッシュボード、それ以外の全ロールは請求書画面に着地する。
func LandingPath(r Role) string {
	if r == SuperAdmin {
		return PathDashboard
	}
	return PathInvoice
}

// RouteBinding は保護対象UIルートとロール許可リストの静的な束縛を表す。
// 実行時に変更されない設定データ。
type RouteBinding struct {
	Path         string
	AllowedRoles []Role
}

// Allows はロールが許可リストに含まれるかを返す。
// 許可リストが空またはnilの場合は全ロールを拒否する（フェイルクローズド）。
func (b RouteBinding) Allows(r Role) bool {
	for _, allowed := range b.AllowedRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

// pageBindings は保護対象UIルートの許可リスト。
// ダッシュボードはUSERを除く全ロール、請求書画面は全ロールが入れる。
var pageBindings = map[string]RouteBinding{
	PathDashboard: {
		Path:         PathDashboard,
		AllowedRoles: []Role{SuperAdmin, Admin, UnitManager},
	},
	PathInvoice: {
		Path:         PathInvoice,
		AllowedRoles: []Role{SuperAdmin, Admin, UnitManager, User},
	},
}

// BindingFor は指定UIパスのRouteBindingを返す。
// 束縛が定義されていないパスは空の許可リスト（= 全拒否）として返す。
func BindingFor(path string) RouteBinding {
	if b, ok := pageBindings[path]; ok {
		return b
	}
	return RouteBinding{Path: path}
}
