package catalog

import (
	"fmt"
	"strconv"
)

// SortByLastUpdated is the search sort field ordering mods by their last
// update, newest first together with sortOrder=desc.
const SortByLastUpdated = 3

// GamesPath lists all games.
func GamesPath() string {
	return "/games"
}

// GamePath fetches one game.
func GamePath(gameID int64) string {
	return fmt.Sprintf("/games/%d", gameID)
}

// GameVersionsPath lists the versions of a game.
func GameVersionsPath(gameID int64) string {
	return fmt.Sprintf("/games/%d/versions", gameID)
}

// CategoriesPath lists the categories of a game.
func CategoriesPath(gameID int64) string {
	return "/categories?gameId=" + strconv.FormatInt(gameID, 10)
}

// ModSearchPath searches a category, most recently updated first.
func ModSearchPath(gameID, categoryID int64) string {
	return fmt.Sprintf("/mods/search?gameId=%d&categoryId=%d&sortField=%d&sortOrder=desc", gameID, categoryID, SortByLastUpdated)
}

// ModFilesPath lists the files of a mod. The trailing "?" lets pagination
// parameters be appended directly.
func ModFilesPath(modID int64) string {
	return fmt.Sprintf("/mods/%d/files?", modID)
}

// ModDescriptionPath fetches the HTML description of a mod.
func ModDescriptionPath(modID int64) string {
	return fmt.Sprintf("/mods/%d/description", modID)
}

// FileChangelogPath fetches the changelog of a file.
func FileChangelogPath(modID, fileID int64) string {
	return fmt.Sprintf("/mods/%d/files/%d/changelog", modID, fileID)
}
