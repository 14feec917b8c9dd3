package cwidget

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

var (
	cardTitleColor = color.White
	cardValueColor = color.NRGBA{R: 0xFF, G: 0xEB, B: 0x3B, A: 0xFF}
)

// StatCard is a coloured panel showing a title above a large value.
type StatCard struct {
	widget.BaseWidget

	background *canvas.Rectangle
	title      *canvas.Text
	value      *canvas.Text
}

func NewStatCard(title, value string, bg color.Color) *StatCard {
	card := &StatCard{
		background: canvas.NewRectangle(bg),
		title:      canvas.NewText(title, cardTitleColor),
		value:      canvas.NewText(value, cardValueColor),
	}

	card.background.CornerRadius = 6
	card.background.SetMinSize(fyne.NewSize(0, 80))

	card.title.TextStyle = fyne.TextStyle{Bold: true}
	card.title.TextSize = 15

	card.value.TextStyle = fyne.TextStyle{Bold: true}
	card.value.TextSize = 28

	card.ExtendBaseWidget(card)

	return card
}

func (c *StatCard) CreateRenderer() fyne.WidgetRenderer {
	content := container.NewPadded(container.NewVBox(c.title, c.value))
	return widget.NewSimpleRenderer(container.NewStack(c.background, content))
}

func (c *StatCard) Title() string {
	return c.title.Text
}

func (c *StatCard) Value() string {
	return c.value.Text
}

func (c *StatCard) SetValue(v string) {
	if c.value.Text == v {
		return
	}
	c.value.Text = v
	c.value.Refresh()
}
