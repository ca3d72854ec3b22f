package wire

// FileMode mirrors the teacher's helper type over the raw mode bits found
// in Attr.Mode, so callers can ask "is this a directory" without importing
// syscall-specific S_IF* constants at every call site.
type FileMode uint32

const (
	modeFmt    FileMode = 0170000
	modeFifo   FileMode = 0010000
	modeChar   FileMode = 0020000
	modeDir    FileMode = 0040000
	modeBlock  FileMode = 0060000
	modeRegular FileMode = 0100000
	modeLink   FileMode = 0120000
	modeSocket FileMode = 0140000
)

func (m FileMode) IsFifo() bool    { return m&modeFmt == modeFifo }
func (m FileMode) IsChar() bool    { return m&modeFmt == modeChar }
func (m FileMode) IsDir() bool     { return m&modeFmt == modeDir }
func (m FileMode) IsBlock() bool   { return m&modeFmt == modeBlock }
func (m FileMode) IsRegular() bool { return m&modeFmt == modeRegular }
func (m FileMode) IsSymlink() bool { return m&modeFmt == modeLink }
func (m FileMode) IsSocket() bool  { return m&modeFmt == modeSocket }

func (a *Attr) FileMode() FileMode { return FileMode(a.Mode) }
func (a *Attr) IsFifo() bool       { return a.FileMode().IsFifo() }
func (a *Attr) IsChar() bool       { return a.FileMode().IsChar() }
func (a *Attr) IsDir() bool        { return a.FileMode().IsDir() }
func (a *Attr) IsBlock() bool      { return a.FileMode().IsBlock() }
func (a *Attr) IsRegular() bool    { return a.FileMode().IsRegular() }
func (a *Attr) IsSymlink() bool    { return a.FileMode().IsSymlink() }
func (a *Attr) IsSocket() bool     { return a.FileMode().IsSocket() }
