package forum

import (
	"sort"
	"time"
)

// Category is the cuisine section a post is filed under.
type Category string

const (
	CategorySoups       Category = "Soups"
	CategorySalads      Category = "Salads"
	CategoryMainCourses Category = "Main courses"
	CategoryVegetarian  Category = "Vegetarian"
	CategoryDessert     Category = "Dessert"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategorySoups,
	CategorySalads,
	CategoryMainCourses,
	CategoryVegetarian,
	CategoryDessert,
}

// Post is a forum post as returned to callers. LikedBy and DislikedBy hold
// handles in ascending order.
type Post struct {
	ID         string
	Author     string
	Title      string
	Content    string
	Category   Category
	Tags       []string
	ImageURL   string
	CreatedOn  string
	LikedBy    []string
	DislikedBy []string
	Comments   map[string]Comment
}

// CommentCount returns the number of top-level comments.
func (p Post) CommentCount() int {
	return len(p.Comments)
}

// LikeCount returns the number of likes.
func (p Post) LikeCount() int {
	return len(p.LikedBy)
}

// Reaction returns the reaction handle left on the post.
func (p Post) Reaction(handle string) Reaction {
	switch {
	case contains(p.LikedBy, handle):
		return ReactionLike
	case contains(p.DislikedBy, handle):
		return ReactionDislike
	}
	return ReactionNone
}

// NewPost holds the fields an author supplies when creating a post.
type NewPost struct {
	Author   string
	Title    string
	Content  string
	Category Category
	Tags     []string
	ImageURL string
}

// PostPatch lists post fields to overwrite. Nil fields are left unchanged.
type PostPatch struct {
	Title    *string
	Content  *string
	Category *Category
	Tags     *[]string
	ImageURL *string
}

// postRecord is the stored shape of a post.
type postRecord struct {
	ID         string             `dynamodbav:"id,omitempty"`
	Author     string             `dynamodbav:"author"`
	Title      string             `dynamodbav:"title"`
	Content    string             `dynamodbav:"content"`
	Category   Category           `dynamodbav:"category"`
	Tags       []string           `dynamodbav:"tags"`
	ImageURL   string             `dynamodbav:"imageUrl,omitempty"`
	CreatedOn  string             `dynamodbav:"createdOn"`
	LikedBy    map[string]bool    `dynamodbav:"likedBy"`
	DislikedBy map[string]bool    `dynamodbav:"dislikedBy"`
	Comments   map[string]Comment `dynamodbav:"comments"`
}

// toPost converts a stored record read under key.
func (r postRecord) toPost(key string) Post {
	p := Post{
		ID:         r.ID,
		Author:     r.Author,
		Title:      r.Title,
		Content:    r.Content,
		Category:   r.Category,
		Tags:       r.Tags,
		ImageURL:   r.ImageURL,
		CreatedOn:  r.CreatedOn,
		LikedBy:    members(r.LikedBy),
		DislikedBy: members(r.DislikedBy),
		Comments:   make(map[string]Comment, len(r.Comments)),
	}
	if p.ID == "" {
		// The id is stamped by a second write after the insert.
		p.ID = key
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	for id, c := range r.Comments {
		c.ID = id
		p.Comments[id] = c
	}
	return p
}

// Comment is a top-level comment on a post.
type Comment struct {
	ID         string           `dynamodbav:"-"`
	Content    string           `dynamodbav:"content"`
	UserHandle string           `dynamodbav:"userHandle"`
	Timestamp  string           `dynamodbav:"timestamp"`
	Replies    map[string]Reply `dynamodbav:"replies"`
	Likes      map[string]bool  `dynamodbav:"likes"`
}

// Reply is an answer to a comment.
type Reply struct {
	ID         string `dynamodbav:"-"`
	Content    string `dynamodbav:"content"`
	UserHandle string `dynamodbav:"userHandle"`
	Timestamp  string `dynamodbav:"timestamp"`
}

// User is a registered member, keyed by Handle.
type User struct {
	Handle         string          `dynamodbav:"handle"`
	UID            string          `dynamodbav:"uid"`
	Email          string          `dynamodbav:"email"`
	FirstName      string          `dynamodbav:"firstName,omitempty"`
	LastName       string          `dynamodbav:"lastName,omitempty"`
	PhoneNumber    string          `dynamodbav:"phoneNumber,omitempty"`
	ProfilePicture string          `dynamodbav:"profilePicture,omitempty"`
	IsAdmin        bool            `dynamodbav:"isAdmin"`
	IsBlocked      bool            `dynamodbav:"isBlocked"`
	CreatedOn      string          `dynamodbav:"createdOn"`
	LikedPosts     map[string]bool `dynamodbav:"likedPosts"`
	DislikedPosts  map[string]bool `dynamodbav:"dislikedPosts"`
}

// DisplayName returns the first name, or the handle when none is set.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Handle
}

// Reaction is a user's reaction to a post.
type Reaction int

const (
	ReactionNone Reaction = iota
	ReactionLike
	ReactionDislike
)

func (r Reaction) String() string {
	switch r {
	case ReactionLike:
		return "like"
	case ReactionDislike:
		return "dislike"
	}
	return "none"
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way records store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// members returns the keys of a membership map in ascending order.
func members(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
