// Package insights derives the decorative parts of the dashboard: rotating facts about the
// playing artist and the listening summary on the profile page.
package insights
