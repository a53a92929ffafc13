package models

// TorrentStatus mirrors the daemon's numeric torrent status.
type TorrentStatus int

const (
	TorrentStopped TorrentStatus = iota
	TorrentCheckWait
	TorrentChecking
	TorrentDownloadWait
	TorrentDownloading
	TorrentSeedWait
	TorrentSeeding
)

func (s TorrentStatus) String() string {
	switch s {
	case TorrentStopped:
		return "Stopped"
	case TorrentCheckWait:
		return "Queued to verify"
	case TorrentChecking:
		return "Verifying"
	case TorrentDownloadWait:
		return "Queued"
	case TorrentDownloading:
		return "Downloading"
	case TorrentSeedWait:
		return "Queued to seed"
	case TorrentSeeding:
		return "Seeding"
	default:
		return "Unknown"
	}
}

// Torrent is the subset of torrent fields shown by the host.
type Torrent struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Status       TorrentStatus `json:"status"`
	PercentDone  float64       `json:"percentDone"`
	RateDownload int64         `json:"rateDownload"`
	RateUpload   int64         `json:"rateUpload"`
	Error        int           `json:"error"`
	ErrorString  string        `json:"errorString"`
}

// SessionStats holds aggregate daemon counters.
type SessionStats struct {
	ActiveTorrentCount int   `json:"activeTorrentCount"`
	PausedTorrentCount int   `json:"pausedTorrentCount"`
	TorrentCount       int   `json:"torrentCount"`
	DownloadSpeed      int64 `json:"downloadSpeed"`
	UploadSpeed        int64 `json:"uploadSpeed"`
}

// PollResult is what one successful poll cycle produces.
type PollResult struct {
	Torrents []Torrent
	Stats    SessionStats
}
