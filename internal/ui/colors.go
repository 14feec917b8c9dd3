package ui

import "image/color"

var (
	colorHeader     = color.NRGBA{R: 0x3A, G: 0x3D, B: 0x46, A: 0xFF}
	colorBackground = color.NRGBA{R: 0xF0, G: 0xF2, B: 0xF5, A: 0xFF}
	colorPanel      = color.NRGBA{R: 0xE3, G: 0xF2, B: 0xFD, A: 0xFF}
	colorFooterText = color.NRGBA{R: 0xB0, G: 0xBE, B: 0xC5, A: 0xFF}
	colorMenuTitle  = color.NRGBA{R: 0x1E, G: 0x88, B: 0xE5, A: 0xFF}

	colorIdle    = color.NRGBA{R: 0xFF, G: 0xC1, B: 0x07, A: 0xFF}
	colorRunning = color.NRGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF}
	colorStopped = color.NRGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0xFF}

	colorCardToday  = color.NRGBA{R: 0x19, G: 0x76, B: 0xD2, A: 0xFF}
	colorCardTotal  = color.NRGBA{R: 0x00, G: 0x79, B: 0x6B, A: 0xFF}
	colorCardExport = color.NRGBA{R: 0x6A, G: 0x1B, B: 0x9A, A: 0xFF}
)
