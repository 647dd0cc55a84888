package model

// CommitAuthor attributes an upstream commit to the acting user
type CommitAuthor struct {
	Name  string
	Email string
}
