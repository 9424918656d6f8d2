package main

import "fmt"

const (
	talkIntroBase = 600000000
	talkOutroBase = 700000000
	// Talk intro lines start at this offset inside an account's talk block.
	talkIntroOffset = 100
	// Account ids are spaced so that id..id+3 can hold the name entries.
	accountStride = 10
	// Menu label ids are menuTextBase + category.
	menuTextBase = 258010
)

// IDSet holds every id derived for one fight.
type IDSet struct {
	Ordinal       int
	NpcCharaID    int
	ArenaID       int
	AccountID     int
	RankTextureID int
}

// DeriveIDs computes the ids of the fight at ordinal. It has no state: the
// same ordinal always yields the same ids.
func DeriveIDs(c ConstantsProperties, ordinal int) (IDSet, error) {
	if ordinal < 0 {
		return IDSet{}, fmt.Errorf("%w: negative fight ordinal %d", ErrInput, ordinal)
	}
	return IDSet{
		Ordinal:       ordinal,
		NpcCharaID:    c.StartingNpcCharaID + ordinal,
		ArenaID:       c.StartingArenaID + ordinal,
		AccountID:     c.StartingAccountID + ordinal*accountStride,
		RankTextureID: c.StartingArenaRank - ordinal,
	}, nil
}

func TalkIntroID(accountID, line int) int {
	return talkIntroBase + accountID*1000 + talkIntroOffset + line
}

func TalkOutroID(accountID, line int) int {
	return talkOutroBase + accountID*1000 + line
}

func (s IDSet) TalkIntroID(line int) int {
	return TalkIntroID(s.AccountID, line)
}

func (s IDSet) TalkOutroID(line int) int {
	return TalkOutroID(s.AccountID, line)
}

// Name ids of the account: AC name at +0 and +2, pilot name at +1 and +3.
func (s IDSet) ACNameIDs() []int {
	return []int{s.AccountID, s.AccountID + 2}
}

func (s IDSet) PilotNameIDs() []int {
	return []int{s.AccountID + 1, s.AccountID + 3}
}

func MenuTextID(category int) int {
	return menuTextBase + category
}
