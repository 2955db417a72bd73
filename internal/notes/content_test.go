package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContent_AllSections(t *testing.T) {
	body := `Hi team,

Key Points:
- Budget approved for Q3
- Joe wants a demo next week

Action Items:
• Send pricing deck
* Book follow-up call

Next Steps:
- Intro to their CTO

Thanks!`

	c := ParseContent(body)
	assert.Equal(t, []string{"Budget approved for Q3", "Joe wants a demo next week"}, c.KeyPoints)
	assert.Equal(t, []string{"Send pricing deck", "Book follow-up call"}, c.ActionItems)
	assert.Equal(t, []string{"Intro to their CTO"}, c.NextSteps)
	assert.False(t, c.IsEmpty())
}

func TestParseContent_HeaderVariants(t *testing.T) {
	body := `Discussion summary
- point one
TODO
- task one
Follow-up items
- step one`

	c := ParseContent(body)
	assert.Equal(t, []string{"point one"}, c.KeyPoints)
	assert.Equal(t, []string{"task one"}, c.ActionItems)
	assert.Equal(t, []string{"step one"}, c.NextSteps)
}

func TestParseContent_BulletsOutsideSectionsIgnored(t *testing.T) {
	body := `- orphan bullet before any header
Random paragraph text.
Action items:
- real task
Plain line inside a section is ignored.
- another task`

	c := ParseContent(body)
	assert.Empty(t, c.KeyPoints)
	assert.Equal(t, []string{"real task", "another task"}, c.ActionItems)
}

func TestParseContent_Sectionless(t *testing.T) {
	c := ParseContent("Thanks for the chat today. Let me know about pricing when you can.")
	assert.True(t, c.IsEmpty())
}

func TestParseContent_Empty(t *testing.T) {
	assert.True(t, ParseContent("").IsEmpty())
}

func TestParseContent_BulletMentioningHeaderStaysPut(t *testing.T) {
	body := `Key points:
- discussed action items for next sprint`

	c := ParseContent(body)
	assert.Equal(t, []string{"discussed action items for next sprint"}, c.KeyPoints)
	assert.Empty(t, c.ActionItems, "bullet text never switches the section")
}
