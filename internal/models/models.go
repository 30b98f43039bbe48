package models

// User is a bot user, created on first contact and never updated after.
type User struct {
	UserID   int64  `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
	FullName string `db:"fullname" json:"fullname"`
	RegDate  string `db:"reg_date" json:"reg_date"`
}

// Query source tags.
const (
	SourceCommand = "command"
	SourceMessage = "message"
	SourceAsk     = "ask"
	SourceNews    = "news"
)

// Query is an append-only log record of a single user interaction.
type Query struct {
	ID     int64  `db:"id" json:"id"`
	UserID int64  `db:"user_id" json:"user_id"`
	Text   string `db:"text" json:"text"`
	Source string `db:"source" json:"source"`
	Params string `db:"params" json:"params"`
	TS     string `db:"ts" json:"ts"`
}

// Preset is a user-named saved block of text. Names are not unique: adding
// the same name again stores another row.
type Preset struct {
	ID        int64  `db:"id" json:"id"`
	UserID    int64  `db:"user_id" json:"user_id"`
	Name      string `db:"name" json:"name"`
	Content   string `db:"content" json:"content"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Article is a single news search result with HTML-escaped fields.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
