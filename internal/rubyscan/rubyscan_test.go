package rubyscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testController = `class UsersController < ApplicationController

  def create
    @user = User.new(params[:user])
    if @user.save
      redirect_to @user
    else
      render :new
    end
  end

  def update
    @user = User.find(params[:id])
    @user.tags.each do |tag|
      tag.touch
    end
    if @user.update(params[:user])
      redirect_to @user
    else
      render :edit
    end
  end

  private

  def user_params
    params.require(:user).permit(:name, :email)
  end
end
`

func TestMethodContext_SimpleMethod(t *testing.T) {
	ctx := MethodContext(testController, 4)

	require.NotNil(t, ctx)
	assert.Equal(t, "create", ctx.Name)
	assert.Equal(t, 3, ctx.StartLine)
	assert.Equal(t, 10, ctx.EndLine)
	assert.Contains(t, ctx.Body, "User.new(params[:user])")
}

func TestMethodContext_NestedBlocks(t *testing.T) {
	// Line 17 sits inside update, below an each do...end block.
	ctx := MethodContext(testController, 17)

	require.NotNil(t, ctx)
	assert.Equal(t, "update", ctx.Name)
	assert.Equal(t, 12, ctx.StartLine)
	assert.Equal(t, 22, ctx.EndLine)
}

func TestMethodContext_TopLevelLine(t *testing.T) {
	// Line 1 is the class definition, above any method.
	assert.Nil(t, MethodContext(testController, 1))

	// "private" sits between methods; the def above it already closed.
	assert.Nil(t, MethodContext(testController, 24))
}

func TestMethodContext_OutOfRange(t *testing.T) {
	assert.Nil(t, MethodContext(testController, 0))
	assert.Nil(t, MethodContext(testController, 9999))
}

func TestMethodContext_UnterminatedMethod(t *testing.T) {
	content := "def broken\n  x = 1\n  y = 2"
	ctx := MethodContext(content, 2)

	require.NotNil(t, ctx)
	assert.Equal(t, "broken", ctx.Name)
	assert.Equal(t, 3, ctx.EndLine)
}

func TestMethodContext_CommentLinesIgnored(t *testing.T) {
	content := "def show\n  # if this comment counted, the end below would not close\n  render :show\nend\n"
	ctx := MethodContext(content, 3)

	require.NotNil(t, ctx)
	assert.Equal(t, 4, ctx.EndLine)
}

func TestControllerName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"app/controllers/users_controller.rb", "UsersController"},
		{"users_controller.rb", "UsersController"},
		{"app/controllers/admin_reports_controller.rb", "AdminReportsController"},
		{"app/models/user.rb", "UserController"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ControllerName(tt.path), tt.path)
	}
}

func TestIsControllerPath(t *testing.T) {
	assert.True(t, IsControllerPath("app/controllers/users_controller.rb"))
	assert.True(t, IsControllerPath(`app\controllers\users_controller.rb`))
	assert.False(t, IsControllerPath("app/models/user.rb"))
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "user", ResourceName("UsersController", ""))
	assert.Equal(t, "user", ResourceName("", "@user = User.new(params[:user])"))
	assert.Equal(t, "resource", ResourceName("", "something else"))
}
