package types

// Recipe selects which stage sequence a job runs.
type Recipe string

const (
	RecipeSplice         Recipe = "splice"
	RecipeOverlay        Recipe = "overlay"
	RecipeChunkedOverlay Recipe = "chunked-overlay"
)

// Profile is the normalization target all combination operations rely on.
// Inputs combined together must share one profile.
type Profile struct {
	Width      int
	Height     int
	FPS        int
	VideoCodec string
	AudioCodec string
}

// Role names an artifact within a job. Each role is written by exactly one
// stage and never overwritten.
type Role string

const (
	RoleRawMain         Role = "raw-main"
	RoleRawBroll        Role = "raw-broll"
	RoleChunk           Role = "chunk"
	RoleNormalizedMain  Role = "normalized-main"
	RoleNormalizedBroll Role = "normalized-broll"
	RoleAudio           Role = "audio"
	RoleTrimmedBroll    Role = "trimmed-broll"
	RolePreSegment      Role = "pre-segment"
	RolePostSegment     Role = "post-segment"
	RoleConcatManifest  Role = "concat-manifest"
	RoleJoined          Role = "joined"
	RoleFinalOutput     Role = "final-output"
)

// Filename maps a role to its on-disk name inside the job directory.
func (r Role) Filename() string {
	switch r {
	case RoleRawMain:
		return "raw_main.mp4"
	case RoleRawBroll:
		return "raw_broll.mp4"
	case RoleChunk:
		return "chunk.mp4"
	case RoleNormalizedMain:
		return "main_norm.mp4"
	case RoleNormalizedBroll:
		return "broll_norm.mp4"
	case RoleAudio:
		return "audio.mp3"
	case RoleTrimmedBroll:
		return "broll_trimmed.mp4"
	case RolePreSegment:
		return "pre.mp4"
	case RolePostSegment:
		return "post.mp4"
	case RoleConcatManifest:
		return "concat_list.txt"
	case RoleJoined:
		return "joined.mp4"
	case RoleFinalOutput:
		return "output.mp4"
	}
	return string(r)
}

// Result is what a completed job hands back to the caller.
type Result struct {
	JobID          string
	Recipe         Recipe
	InsertionPoint int
	Transcript     string
	BrollDuration  int
	ChunkStart     int
	OutputPath     string
	OutputRef      string
}
