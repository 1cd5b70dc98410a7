package profile

import "fmt"

// Compose renders a user as "Bio: <bio>. Interests: <interests>. Occupation: <occupation>."
// Absent fields render as empty segments.
func Compose(u User) string {
	return fmt.Sprintf("Bio: %s. Interests: %s. Occupation: %s.", u.Bio, u.Interests, u.Occupation)
}
